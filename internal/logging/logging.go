// Package logging provides per-component loggers with a bracketed-prefix
// convention, ported from the source's logging.getLogger(name) /
// logger.info(...) per-module loggers. Grounded on
// leanlp-BTC-coinjoin's log.Printf("[Heuristics] ...") style, the closest
// domain-sibling in the retrieval pack to use the standard library log
// package directly rather than a third-party logging library.
package logging

import (
	"log"
	"os"
)

// New returns a plain *log.Logger for component. Callers bracket their own
// messages (log.Printf("[clique] ...")) the way leanlp-BTC-coinjoin's
// heuristics package does, rather than baking the component name into a
// Logger prefix — so every package still reads the same whether it got its
// logger from here or from log.Default().
func New(component string) *log.Logger {
	return log.New(os.Stderr, "", log.LstdFlags)
}
