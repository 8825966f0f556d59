// Command exampleplugin is a minimal CLN plugin built on the plugin
// library: it registers one command, one notification, and one startup
// option, then runs the host until the node disconnects.
//
// Replaces the teacher's hand-rolled parseArgs/printHelp flag parser
// (main.go) with cobra, grounded in the pack's jinterlante1206-AleutianLocal
// manifest, which pulls in github.com/spf13/cobra for exactly this kind of
// single-binary CLI surface.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	plugin "github.com/firi/cln-plugin"
)

var greeting string

func main() {
	root := &cobra.Command{
		Use:   "exampleplugin",
		Short: "An example CLN plugin built on the plugin host library",
		RunE:  runPlugin,
	}
	root.Flags().StringVar(&greeting, "greeting", "hello", "default greeting used by the greet command")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "exampleplugin: %v\n", err)
		os.Exit(1)
	}
}

func runPlugin(cmd *cobra.Command, args []string) error {
	var allowCaps bool

	h, err := plugin.New(plugin.Config{
		Restartable: true,
		Options: []plugin.OptionDescriptor{
			{
				Name:        "exampleplugin-shout",
				Type:        plugin.OptionTypeBool,
				Default:     "false",
				Description: "Upper-case the greeting",
				Parse: func(value string) error {
					allowCaps = value == "true"
					return nil
				},
			},
		},
		OnInit: func(h *plugin.Host) error {
			h.Config() // node configuration is available from here on
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("constructing host: %w", err)
	}

	if err := h.RegisterCommand("greet", "greet [name]", "Reply with a greeting, optionally shouted.",
		func(c *plugin.Command, params plugin.Params) plugin.CommandResult {
			if c.UsageOnly() {
				return plugin.SetUsage(c, "greet [name]")
			}

			name := params.Get("name").String()
			if name == "" {
				name = "world"
			}

			text := fmt.Sprintf("%s, %s!", greeting, name)
			if allowCaps {
				text = strings.ToUpper(text)
			}

			return plugin.SuccessString(c, text)
		}); err != nil {
		return err
	}

	if err := h.RegisterNotification("connect", func(params plugin.Params) {
		h.Config() // node configuration is available once ready
	}); err != nil {
		return err
	}

	return h.Run(context.Background())
}
