package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"systemstat/base"
	"systemstat/plugins"
	"systemstat/store"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var controller *plugin.Controller

	root := &cobra.Command{
		Use:          "systemstat",
		Short:        "Host statistics collector for SCADA devices",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := plugin.LoadConfig(viper.New(), configPath)
			if err != nil {
				return err
			}
			logger := plugin.NewLogger(cfg.Log)

			controller = plugin.NewController(cfg, logger)
			controller.Out = cmd.OutOrStdout()
			st, err := store.Open(cmd.Context(), cfg.Database.URL, logger)
			if err != nil {
				return err
			}
			controller.Store = st

			// Register all plugins that have been imported.
			for _, p := range plugins.All {
				controller.AddPlugin(p)
			}
			logger.Debug("plugins registered", zap.Strings("plugins", controller.PluginNames()))
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if controller == nil {
				return nil
			}
			_ = controller.Logger.Sync()
			return controller.Close()
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file (yaml, json or toml); SYSTEMSTAT_* variables override it")

	// command dispatches to a plugin action through the controller.
	command := func(use, short, pluginName, action string, flags func(*cobra.Command, map[string]*string)) *cobra.Command {
		opts := map[string]*string{}
		cmd := &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				args := map[string]string{"action": action}
				for k, v := range opts {
					args[k] = *v
				}
				return controller.OnCommand(cmd.Context(), pluginName, args)
			},
		}
		if flags != nil {
			flags(cmd, opts)
		}
		return cmd
	}
	selection := func(cmd *cobra.Command, opts map[string]*string) {
		opts["device"] = cmd.Flags().String("device", "", "only this device")
		opts["ids"] = cmd.Flags().String("ids", "", "comma separated variable ids")
	}

	root.AddCommand(
		command("collect", "Run one collection cycle and print the results as JSON", "collection", "collect",
			func(cmd *cobra.Command, opts map[string]*string) {
				selection(cmd, opts)
				opts["output"] = cmd.Flags().StringP("output", "o", "", "write JSON to this file instead of stdout")
			}),
		command("run", "Poll every device at the configured interval until interrupted", "collection", "run", selection),
		command("catalog", "List the metric catalog", "systemstat", "catalog",
			func(cmd *cobra.Command, opts map[string]*string) {
				opts["format"] = cmd.Flags().String("format", "table", "table or json")
			}),
		command("provision", "Create code tables and store configured variables", "systemstat", "provision", nil),
		command("watch", "Show devices and their latest samples", "textui", "watch", nil),
	)
	return root
}
