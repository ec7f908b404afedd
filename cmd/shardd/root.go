// Package shardd implements the "serve" subcommand: it reads a
// common.ServerConfig from flags/environment and runs an rpc/server
// process for the configured shards.
package shardd

import (
	"fmt"
	"strconv"
	"strings"

	cmdUtil "github.com/kvshard/core/cmd/util"
	"github.com/kvshard/core/internal/idhash"
	"github.com/kvshard/core/rpc/common"
	"github.com/kvshard/core/rpc/server"
	"github.com/kvshard/core/rpc/transport"
	"github.com/kvshard/core/rpc/transport/tcp"
	"github.com/kvshard/core/rpc/transport/unix"
	"github.com/kvshard/core/wire"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}

	// ServeCmd starts a shardd process for the configured shards.
	ServeCmd = &cobra.Command{
		Use:     "serve",
		Short:   "Start a shardd server process",
		Long:    `Start a shardd server process with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is KVSHARD_<flag> (e.g. KVSHARD_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	key := "shards"
	ServeCmd.PersistentFlags().String(key, "100", cmdUtil.WrapString("Comma-separated list of shard IDs this process serves"))

	key = "rtt-millisecond"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("(replicated shards) average round trip time in milliseconds between two NodeHost instances; ElectionRTT/HeartbeatRTT are derived from this"))

	key = "snapshot-entries"
	ServeCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("(replicated shards) how often, in applied Raft log entries, to snapshot automatically; 0 disables it"))

	key = "compaction-overhead"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("(replicated shards) number of snapshots retained after a new one is taken"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("Directory used for each shard's page store and, for replicated shards, Raft's snapshots/WAL"))

	key = "replica-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(replicated shards) unique identifier for this NodeHost instance (e.g. 'node-1')"))

	key = "cluster-members"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(replicated shards) comma-separated NodeHost addresses, format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for replicated-shard propose/read calls"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address this process listens on"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("debug, info, warn, or error"))

	key = "debug-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("If set, serves pprof profiles and a Prometheus metrics dump on this address"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Shards = nil
	for _, s := range strings.Split(viper.GetString("shards"), ",") {
		shardID, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid shard ID %s: %w", s, err)
		}
		serveCmdConfig.Shards = append(serveCmdConfig.Shards, shardID)
	}

	serveCmdConfig.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	serveCmdConfig.SnapshotEntries = viper.GetUint64("snapshot-entries")
	serveCmdConfig.CompactionOverhead = viper.GetUint64("compaction-overhead")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.TransportConfig{Endpoint: viper.GetString("endpoint")}
	serveCmdConfig.DebugEndpoint = viper.GetString("debug-endpoint")

	if id := viper.GetString("replica-id"); id != "" {
		serveCmdConfig.ReplicaID = idhash.HashString(id, 0)
	}

	if clusterMembers := viper.GetString("cluster-members"); clusterMembers != "" {
		serveCmdConfig.ClusterMembers = make(map[uint64]string)
		for _, member := range strings.Split(clusterMembers, ",") {
			parts := strings.Split(member, "=")
			if len(parts) != 2 {
				return fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
			}
			serveCmdConfig.ClusterMembers[idhash.HashString(parts[0], 0)] = parts[1]
		}
	}

	if serveCmdConfig.HasReplicatedShard() {
		if serveCmdConfig.ReplicaID == 0 {
			return fmt.Errorf("--replica-id is required when --cluster-members names more than one node")
		}
		if _, ok := serveCmdConfig.ClusterMembers[serveCmdConfig.ReplicaID]; !ok {
			return fmt.Errorf("no address found for replica ID %d in cluster members", serveCmdConfig.ReplicaID)
		}
	}

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	var s wire.Serializer
	switch viper.GetString("serializer") {
	case "json":
		s = wire.NewJSONSerializer()
	case "gob":
		s = wire.NewGOBSerializer()
	case "binary":
		s = wire.NewBinarySerializer()
	default:
		return fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}

	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "tcp":
		t = tcp.NewTCPServerTransport(64*1024, 8)
	case "unix":
		t = unix.NewUnixServerTransport(64*1024, 8)
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	serv := server.NewRPCServer(*serveCmdConfig, t, s)
	return serv.Serve()
}
