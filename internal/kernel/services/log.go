package services

import "github.com/btcsuite/btclog"

// Subsystem is the logging subsystem tag for the services package.
const Subsystem = "SRVC"

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-level logger used by the services package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
