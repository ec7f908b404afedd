package util

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kvshard/core/rpc/common"
	"github.com/kvshard/core/rpc/transport"
	"github.com/kvshard/core/rpc/transport/tcp"
	"github.com/kvshard/core/rpc/transport/unix"
	"github.com/kvshard/core/wire"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRPCClientFlags adds the flags shared by every command that dials a
// shardd process.
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "localhost:8080", WrapString("The address of the shardd process. Transports that support load balancing accept a comma-separated list"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint, for transports that support this"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry a request"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("Write buffer size for the transport, in KB"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("Read buffer size for the transport, in KB"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (tcp transport only)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval in seconds (tcp transport only)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time in seconds (tcp transport only)"))
}

// InitConfig loads .env files and wires viper to read matching KVSHARD_
// environment variables.
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("kvshard")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// GetClientConfig reads a common.ClientConfig from the currently bound flags.
func GetClientConfig() common.ClientConfig {
	endpoints := strings.Split(viper.GetString("transport-endpoints"), ",")
	return common.ClientConfig{
		Endpoints:     endpoints,
		TimeoutSecond: viper.GetInt("timeout"),
		RetryCount:    viper.GetInt("transport-retries"),
		Transport: common.TransportConfig{
			Endpoints:              endpoints,
			ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
			RetryCount:             viper.GetInt("transport-retries"),
			TCPNoDelay:             viper.GetBool("transport-tcp-nodelay"),
			WriteBufferSize:        viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:         viper.GetInt("transport-read-buffer") * 1024,
			TCPKeepAliveSec:        viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:           viper.GetInt("transport-tcp-linger"),
		},
	}
}

// GetSerializer builds a wire.Serializer from the "serializer" flag.
func GetSerializer() (wire.Serializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return wire.NewJSONSerializer(), nil
	case "gob":
		return wire.NewGOBSerializer(), nil
	case "binary":
		return wire.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetClientTransport builds an IRPCClientTransport from the "transport" flag.
func GetClientTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetShardID retrieves the configured shard ID.
func GetShardID() uint64 {
	return uint64(viper.GetInt("shard"))
}

// BindCommandFlags binds a command's flags to viper.
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
