package cmd

import (
	"fmt"
	"github.com/ValentinKolb/chbridge/cmd/conn"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "chbridge",
		Short: "connection layer for ClickHouse foreign tables",
		Long: fmt.Sprintf(`chbridge (v%s)

Connection management for querying ClickHouse from a SQL engine: connection
descriptors, http and binary drivers, a per-worker connection cache and remote
transaction state tracking.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of chbridge",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("chbridge v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(conn.ConnCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
