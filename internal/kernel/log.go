package kernel

import "github.com/btcsuite/btclog"

// Subsystem is the logging subsystem tag used when wiring this package's
// logger through a shared HandlerSet.
const Subsystem = "KRNL"

// log is the package-level logger for the kernel package. It is disabled by
// default; callers wire it up with UseLogger during daemon startup.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-level logger used by the kernel package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
