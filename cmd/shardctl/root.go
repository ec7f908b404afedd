// Package shardctl implements a command-line client for one shardd
// shard: get/set-family mutations, range scans, metadata inspection, and
// reset, each a single request/response round trip.
package shardctl

import (
	cmdUtil "github.com/kvshard/core/cmd/util"
	"github.com/kvshard/core/rpc/client"
	"github.com/spf13/cobra"
)

var rpcClient *client.Client

// ShardctlCommands is the "shardctl" command group.
var ShardctlCommands = &cobra.Command{
	Use:               "shardctl",
	Short:             "Talk to one shard of a shardd process",
	PersistentPreRunE: connect,
}

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	cmdUtil.SetupRPCClientFlags(ShardctlCommands)

	key := "shard"
	ShardctlCommands.PersistentFlags().Uint64(key, 100, cmdUtil.WrapString("The shard ID to address"))

	ShardctlCommands.AddCommand(getCmd, setCmd, addCmd, replaceCmd, casCmd, appendCmd, prependCmd,
		incrCmd, decrCmd, delCmd, rgetCmd, metainfoGetCmd, metainfoSetCmd, resetCmd)
}

func connect(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd.Root()); err != nil {
		return err
	}

	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}
	t, err := cmdUtil.GetClientTransport()
	if err != nil {
		return err
	}

	rpcClient, err = client.NewClient(cmdUtil.GetClientConfig(), t, s)
	return err
}
