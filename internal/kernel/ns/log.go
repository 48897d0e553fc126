package ns

import "github.com/btcsuite/btclog"

// Subsystem is the logging subsystem tag for the namespace package.
const Subsystem = "NAMS"

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-level logger used by the ns package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
