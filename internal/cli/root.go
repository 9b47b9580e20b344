package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// rootOptions holds the global flags shared by every subcommand
type rootOptions struct {
	configPath string
	logLevel   string
	verbose    bool
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "recall",
		Short: "Recall - long-term memory for conversational assistants",
		Long: `Recall stores salient facts as embedded memories, merges near duplicates
through an LLM adjudicator and retrieves them by similarity and recency.
Maintenance jobs consolidate and reconcile stored memories in the background.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is $HOME/.recall/recall.json)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "also write logs to stderr")

	cmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	cmd.AddCommand(
		newAddCmd(opts),
		newEditCmd(opts),
		newGetCmd(opts),
		newDeleteCmd(opts),
		newSearchCmd(opts),
		newFilterCmd(opts),
		newConsolidateCmd(opts),
		newReconcileCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the recall version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "recall version %s\n", version)
		},
	}
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns a fresh command tree for testing
func GetRootCmd() *cobra.Command {
	return newRootCmd()
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
