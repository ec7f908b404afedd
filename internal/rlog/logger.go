// Package rlog provides the leveled logger used by every package in this
// module, plus the wiring needed to route the consensus library's own
// named loggers through the same factory and level.
package rlog

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
)

// shardLogger implements dragonboat/v4/logger.ILogger so that one factory
// and one --log-level flag cover both this module's own packages and the
// consensus runtime underneath the replication seam.
type shardLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *shardLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *shardLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *shardLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *shardLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *shardLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *shardLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

func (l *shardLogger) log(levelStr, format string, args ...interface{}) {
	l.logger.Printf("%-5s | %-18s | %s", levelStr, l.name, fmt.Sprintf(format, args...))
}

// Create implements the logger.Factory signature expected by
// logger.SetLoggerFactory.
func Create(pkgName string) logger.ILogger {
	return &shardLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: log.New(os.Stdout, "", log.Ldate|log.Ltime),
	}
}

// Get returns (creating if necessary) the named logger. Package-level
// loggers are obtained once, at init time, by calling this directly;
// consensus loggers are named by dragonboat itself.
func Get(pkgName string) logger.ILogger {
	return logger.GetLogger(pkgName)
}

// ParseLevel converts a string level to a logger.LogLevel, panicking on an
// unrecognized value since an invalid --log-level flag is an operator
// configuration error, not a runtime condition to recover from.
func ParseLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG
	case "info":
		return logger.INFO
	case "warning", "warn":
		return logger.WARNING
	case "error":
		return logger.ERROR
	default:
		panic(fmt.Sprintf("rlog: invalid log level %q, must be one of debug, info, warn, error", level))
	}
}

// namedLoggers lists every logger name this module (and the consensus
// library it embeds) registers, so InitAll can apply one level uniformly.
var namedLoggers = []string{
	// consensus runtime (lni/dragonboat)
	"raft", "raftdb", "rsm", "transport", "dragonboat", "util", "logdb",
	// this module's own packages
	"store", "fifo", "backfill", "metainfo", "pagestore", "btree",
	"replica", "rpc", "rpc/transport",
}

// InitAll installs the shared factory as dragonboat's logger factory and
// sets every named logger (consensus and domain) to level.
func InitAll(level string) {
	logger.SetLoggerFactory(Create)
	parsed := ParseLevel(level)
	for _, name := range namedLoggers {
		logger.GetLogger(name).SetLevel(parsed)
	}
}
