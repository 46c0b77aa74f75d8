package main

import (
	// By importing the plugin packages, we cause their init() functions to run,
	// which in turn register the plugins with the central registry.
	_ "systemstat/plugins/collection"
	_ "systemstat/plugins/systemstat"
	_ "systemstat/plugins/textui"
)
