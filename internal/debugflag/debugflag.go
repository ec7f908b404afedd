// Package debugflag gates the expected-metadata assertions that exist
// only in debug builds of the source this module is derived from. They
// are kept as asserts rather than contracts: compiled in always, but
// no-ops unless explicitly enabled.
package debugflag

import "os"

var enabled = os.Getenv("SHARD_DEBUG_ASSERTIONS") == "1"

// Enabled reports whether debug-only assertions (metadata checks, thread
// affinity checks) should run.
func Enabled() bool {
	return enabled
}
