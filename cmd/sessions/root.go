package sessions

import (
	"fmt"
	"time"

	"github.com/sessmux/sessmux/cmd/util"
	"github.com/sessmux/sessmux/rpc/client"
	"github.com/sessmux/sessmux/rpc/common"
	"github.com/spf13/cobra"
)

var (
	rpcClient *client.Client

	// SessionCommands represents the sessions command group
	SessionCommands = &cobra.Command{
		Use:               "sessions",
		Short:             "Inspect and manage sessions",
		PersistentPreRunE: setupSessionClient,
		PersistentPostRun: teardownSessionClient,
	}

	// pingCmd represents the ping command
	pingCmd = &cobra.Command{
		Use:   "ping [server...]",
		Short: "Connect to one or more servers and report session state",
		Long:  "Opens a pinned session to each given server, prints the resulting session informations and disconnects again.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPing,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add subcommands to sessions command
	SessionCommands.AddCommand(pingCmd)

	// Add common client flags to the sessions command
	util.SetupClientFlags(SessionCommands)
}

// setupSessionClient initializes the session client
func setupSessionClient(cmd *cobra.Command, _ []string) error {
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

// teardownSessionClient closes the session client
func teardownSessionClient(_ *cobra.Command, _ []string) {
	if rpcClient != nil {
		rpcClient.Close()
	}
}

func runPing(cmd *cobra.Command, args []string) error {
	for _, server := range args {
		start := time.Now()
		id, err := rpcClient.ManuallyConnect(server)
		if err != nil {
			cmd.Println(fmt.Sprintf("%s: connect failed: %v", server, err))
			continue
		}

		info, err := rpcClient.SessionInformation(id)
		if err != nil {
			return err
		}
		cmd.Println(fmt.Sprintf("%s: %s (%s)", server, info.Status, time.Since(start).Round(time.Millisecond)))

		if err := rpcClient.ManuallyDisconnect(id); err != nil {
			return err
		}
	}

	return nil
}
