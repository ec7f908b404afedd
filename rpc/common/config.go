package common

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/lni/dragonboat/v4/config"
)

// --------------------------------------------------------------------------
// helper functions to interface with Dragonboat (for the server util)
// --------------------------------------------------------------------------

const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1
)

// ToDragonboatConfig converts the ServerConfig to Dragonboat's per-shard Config.
func (c *ServerConfig) ToDragonboatConfig(shardId uint64) config.Config {
	return config.Config{
		ReplicaID:          c.ReplicaID,
		ShardID:            shardId,
		ElectionRTT:        electionRTTFactor,
		HeartbeatRTT:       heartbeatRTTFactor,
		CheckQuorum:        true,
		SnapshotEntries:    c.SnapshotEntries,
		CompactionOverhead: c.CompactionOverhead,
		MaxInMemLogSize:    0,
	}
}

// ToNodeHostConfig creates a NodeHostConfig for Dragonboat.
func (c *ServerConfig) ToNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         c.DataDir,
		NodeHostDir:    c.DataDir,
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.ClusterMembers[c.ReplicaID],
	}
}

// --------------------------------------------------------------------------
// Transport tuning, shared shape for server listen config and client dial
// config. Declared once and nested under both ServerConfig.Transport and
// ClientConfig.Transport, so every transport implementation (tcp and unix,
// through base) agrees on one struct instead of each assuming its own.
// --------------------------------------------------------------------------

// TransportConfig holds socket-level tuning shared by the listen side
// (Endpoint) and the dial side (Endpoints, ConnectionsPerEndpoint,
// RetryCount).
type TransportConfig struct {
	// Endpoint is the address a server transport listens on.
	Endpoint string
	// Endpoints are the addresses a client transport dials, used with
	// round-robin connection selection.
	Endpoints []string

	ConnectionsPerEndpoint int
	RetryCount             int

	TCPNoDelay      bool
	WriteBufferSize int
	ReadBufferSize  int
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for one shardd process:
// the shards it runs (each backed by a store.Store, optionally replicated
// through the replica seam), the Dragonboat tuning for that seam, and the
// transport/logging settings for the process as a whole.
type ServerConfig struct {
	// Shards this process serves, one store per ID.
	Shards []uint64

	// Dragonboat parameters, used only for shards with more than one
	// cluster member. DataDir is the exception: local shards also keep
	// their page stores under it (in memory when it is empty).
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64
	DataDir            string
	ReplicaID          uint64
	ClusterMembers     map[uint64]string

	TimeoutSecond int64
	LogLevel      string

	Transport TransportConfig

	// DebugEndpoint, if set, serves pprof profiles and a Prometheus-format
	// metrics dump on this address. Empty disables the debug server.
	DebugEndpoint string
}

// HasReplicatedShard reports whether any shard in this config runs across
// more than one cluster member and therefore needs a NodeHost.
func (c *ServerConfig) HasReplicatedShard() bool {
	return len(c.ClusterMembers) > 1
}

// String returns a formatted, human-readable rendering of the config.
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Shards")
	for _, shardID := range c.Shards {
		addField(strconv.FormatUint(shardID, 10), "store")
	}

	if c.HasReplicatedShard() {
		addSection("Node Identity")
		addField("RAFT Address", c.ClusterMembers[c.ReplicaID])
		addField("Node ID", strconv.FormatUint(c.ReplicaID, 10))

		addSection("RAFT Parameters")
		addField("Round Trip Time (ms)", fmt.Sprintf("%d ms", c.RTTMillisecond))
		addField("Election RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*electionRTTFactor))
		addField("Heartbeat RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*heartbeatRTTFactor))
		addField("Snapshot Entries", fmt.Sprintf("%d", c.SnapshotEntries))
		addField("Compaction Overhead", fmt.Sprintf("%d", c.CompactionOverhead))

		addSection("Storage")
		addField("Data Directory", c.DataDir)

		addSection("Cluster Members")
		var keys []uint64
		for k := range c.ClusterMembers {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("    Node %d: %s\n", k, c.ClusterMembers[k]))
		}
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientConfig configures a peer/CLI connection to a shardd process. The
// base connection-pool transport (tcp, unix) reads the top-level
// TimeoutSecond, and takes its endpoints, retry count and socket tuning
// from Transport; the top-level Endpoints and RetryCount are not read by
// any transport here. Earlier revisions of this
// config had cmd/util assume a nested Transport substructure the struct
// itself never declared; here both shapes are declared for real and kept
// in sync by whatever builds the config (see cmd/shardctl).
type ClientConfig struct {
	Endpoints     []string
	TimeoutSecond int
	RetryCount    int

	Transport TransportConfig
}

// String returns a formatted, human-readable rendering of the config.
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))

	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
