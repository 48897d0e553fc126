package guest

import "github.com/btcsuite/btclog"

// Subsystem is the logging subsystem tag for the guest package.
const Subsystem = "GUST"

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-level logger used by the guest package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
