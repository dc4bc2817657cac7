package node

import "github.com/btcsuite/btclog"

// log is the package-level logger, following the btcd-family convention of
// a disabled no-op logger until the caller wires one in via UseLogger.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by LogOnce/Warn.
func UseLogger(logger btclog.Logger) {
	log = logger
}

var loggedOnce = make(map[string]bool)

// LogOnce emits msg at Info level the first time it is seen, and is silent
// on every subsequent call with the same msg; ClaimTrie.Close uses it to
// report cleanup errors.
func LogOnce(msg string) {
	if loggedOnce[msg] {
		return
	}
	loggedOnce[msg] = true
	log.Info(msg)
}

// Warn logs msg at Warn level.
func Warn(msg string) {
	log.Warn(msg)
}
