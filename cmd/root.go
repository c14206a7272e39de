package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dCheck/cmd/checkout"
	"github.com/ValentinKolb/dCheck/cmd/entity"
	"github.com/ValentinKolb/dCheck/cmd/serve"
	"github.com/ValentinKolb/dCheck/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dcheck",
		Short: "advisory check-out/check-in for workspace folders and files",
		Long: fmt.Sprintf(`dCheck (v%s)

Advisory check-out/check-in locks for folders and files of a shared workspace.
Locks are rows of a log table in the owning project, guarded by etag based
optimistic concurrency.`, Version),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dCheck",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dCheck v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(checkout.CheckoutCmd)
	RootCmd.AddCommand(checkout.CheckinCmd)
	RootCmd.AddCommand(checkout.LogCmd)
	RootCmd.AddCommand(entity.EntityCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http)"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("level of the progress log written to stderr (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
// Errors are printed as a single line, the exit code is 1.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
