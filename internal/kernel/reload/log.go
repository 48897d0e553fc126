package reload

import "github.com/btcsuite/btclog"

// Subsystem is the logging subsystem tag for the reload package.
const Subsystem = "RELD"

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-level logger used by the reload package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
