package transport

import "github.com/btcsuite/btclog"

// Subsystem is the logging subsystem tag for the transport package.
const Subsystem = "TRNS"

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-level logger used by the transport package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
