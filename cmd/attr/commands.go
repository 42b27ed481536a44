package attr

import (
	"fmt"

	"github.com/sessmux/sessmux/rpc/client"
	"github.com/spf13/cobra"
)

// ---- read command ----

var readCmd = &cobra.Command{
	Use:   "read [server] [address...]",
	Short: "Read one or more attributes from a server",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		server := args[0]

		targets := make([]client.Target, 0, len(args)-1)
		for _, address := range args[1:] {
			targets = append(targets, client.Target{
				ServerURI: server,
				Address:   address,
			})
		}

		result, err := rpcClient.Read(targets)
		if err != nil {
			return err
		}

		printOutcomes(cmd, targets, result)
		return nil
	},
}

// ---- write command ----

var writeCmd = &cobra.Command{
	Use:   "write [server] [address] [value]",
	Short: "Write a value to an attribute on a server",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		targets := []client.Target{{
			ServerURI: args[0],
			Address:   args[1],
			Value:     []byte(args[2]),
		}}

		result, err := rpcClient.Write(targets)
		if err != nil {
			return err
		}

		printOutcomes(cmd, targets, result)
		return nil
	},
}

// ---- call command ----

var callCmd = &cobra.Command{
	Use:   "call [server] [address] [argument]",
	Short: "Call a method on a server",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := client.Target{
			ServerURI: args[0],
			Address:   args[1],
		}
		if len(args) == 3 {
			target.Value = []byte(args[2])
		}

		targets := []client.Target{target}

		result, err := rpcClient.Call(targets)
		if err != nil {
			return err
		}

		printOutcomes(cmd, targets, result)
		return nil
	},
}

// printOutcomes prints one line per target outcome
func printOutcomes(cmd *cobra.Command, targets []client.Target, result *client.Result) {
	for i, outcome := range result.Outcomes {
		address := ""
		if i < len(targets) {
			address = targets[i].Address
		}
		switch {
		case !outcome.Processed:
			cmd.Println(fmt.Sprintf("%s: <not processed>", address))
		case outcome.Err != nil:
			cmd.Println(fmt.Sprintf("%s: error: %v", address, outcome.Err))
		default:
			cmd.Println(fmt.Sprintf("%s: %s", address, string(outcome.Value)))
		}
	}
}
