// Command kayero edits notebooks: markdown documents made of prose, code and
// graph blocks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/livetemplate/kayero/cmd/kayero/commands"
)

const version = "0.1.0-dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "kayero",
		Short:         "kayero - Notebooks you can edit, chart and share",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		delegate("init [dir]", "Write a default kayero.yaml", commands.InitCommand),
		delegate("serve <file.md>", "Start the editing server", commands.ServeCommand),
		delegate("validate <file.md>...", "Check notebooks for parse errors", commands.ValidateCommand),
		delegate("blocks <file.md>", "List the blocks of a notebook", commands.BlocksCommand),
		delegate("render <file.md>", "Print a notebook in canonical form", commands.RenderCommand),
		&cobra.Command{
			Use:   "version",
			Short: "Show version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "kayero version %s\n", version)
			},
		},
	)
	return root
}

// delegate wraps a subcommand that parses its own flags.
func delegate(use, short string, run func([]string) error) *cobra.Command {
	return &cobra.Command{
		Use:                use,
		Short:              short,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args)
		},
	}
}
