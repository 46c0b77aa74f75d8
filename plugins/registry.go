package plugins

import (
	"fmt"
	"strings"

	plugin "systemstat/base"
)

// All holds the registered plugins in registration order.
var All []plugin.Plugin

// Register adds p to All. Plugins register from init, so a name collision is
// a programming error and panics.
func Register(p plugin.Plugin) {
	for _, q := range All {
		if strings.EqualFold(q.Name(), p.Name()) {
			panic(fmt.Sprintf("plugins: %q registered twice", p.Name()))
		}
	}
	All = append(All, p)
}
