package attr

import (
	"github.com/sessmux/sessmux/cmd/util"
	"github.com/sessmux/sessmux/rpc/client"
	"github.com/sessmux/sessmux/rpc/common"
	"github.com/spf13/cobra"
)

var (
	rpcClient *client.Client

	// AttrCommands represents the attribute command group
	AttrCommands = &cobra.Command{
		Use:               "attr",
		Short:             "Read, write and call attributes on remote servers",
		PersistentPreRunE: setupClient,
		PersistentPostRun: teardownClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common client flags to the attr command
	util.SetupClientFlags(AttrCommands)

	// Add subcommands
	AttrCommands.AddCommand(readCmd)
	AttrCommands.AddCommand(writeCmd)
	AttrCommands.AddCommand(callCmd)
	AttrCommands.AddCommand(perfCmd)
}

// setupClient initializes the session client
func setupClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()
	common.InitLoggers(config.LogLevel)

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	connector, err := util.GetConnector()
	if err != nil {
		return err
	}

	rpcClient = client.NewClient(*config, connector, s, nil)
	return nil
}

// teardownClient closes the session client
func teardownClient(_ *cobra.Command, _ []string) {
	if rpcClient != nil {
		rpcClient.Close()
	}
}
