// Package common holds the configuration structures shared by the RPC
// server and client: ServerConfig (shards, replication tuning, listen
// endpoint) and ClientConfig (dial endpoints, timeout, transport tuning),
// plus the translators from ServerConfig to Dragonboat's own config types.
//
// Logging setup lives in internal/rlog, not here: this package only
// carries the plain data Dragonboat's config types need.
package common
