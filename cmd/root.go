package cmd

import (
	"fmt"
	"os"

	"github.com/sessmux/sessmux/cmd/attr"
	"github.com/sessmux/sessmux/cmd/sessions"
	"github.com/sessmux/sessmux/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "sessmux",
		Short: "session pooling and request-dispatch client",
		Long: fmt.Sprintf(`sessmux (v%s)

A protocol client that pools long-lived sessions to many servers,
multiplexes synchronous and asynchronous requests over them and
recovers sessions that drop.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of sessmux",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sessmux v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(attr.AttrCommands)
	RootCmd.AddCommand(sessions.SessionCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary, cbor)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
