// Package cmd implements the command-line interface for this storage
// core. It provides a hierarchical command structure for running a
// shardd server process and driving it as a client.
//
// The package is organized into several subpackages:
//
//   - shardd: starts and configures a server process for one or more shards
//   - shardctl: a client for reading, writing, and inspecting one shard
//   - util: shared flag/config plumbing for both (internal use)
//
// See shard -help for the full command list.
package cmd
