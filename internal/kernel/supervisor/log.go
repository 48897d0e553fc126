package supervisor

import "github.com/btcsuite/btclog"

// Subsystem is the logging subsystem tag for the supervisor package.
const Subsystem = "SUPV"

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-level logger used by the supervisor package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
