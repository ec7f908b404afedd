package cmd

import (
	"fmt"
	"os"

	"github.com/kvshard/core/cmd/shardctl"
	"github.com/kvshard/core/cmd/shardd"
	"github.com/kvshard/core/cmd/util"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	// RootCmd represents the base command when called without any subcommands.
	RootCmd = &cobra.Command{
		Use:   "shard",
		Short: "per-shard storage core: server and client",
		Long: fmt.Sprintf(`shard (v%s)

Runs and drives one process's worth of shards: a memcached-style
key-value store sharded by key range, optionally replicated across a
Raft consensus group.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("shard v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.AddCommand(shardd.ServeCmd)
	RootCmd.AddCommand(shardctl.ShardctlCommands)
	RootCmd.AddCommand(versionCmd)

	RootCmd.PersistentFlags().String("serializer", "binary", util.WrapString("serializer to use (json, gob, binary)"))
	RootCmd.PersistentFlags().String("transport", "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags
// appropriately. It is called by main.main exactly once.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
