package pagelock

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// log is the package-wide structured logger. It defaults to zerolog's
// ConsoleWriter on stderr at warn level, so by default only warn events
// (a split marked broken) are printed; hosts that want the debug-level
// lock/unlock/split-finalize trail call SetLogger.
var (
	logMu sync.RWMutex
	log   zerolog.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.WarnLevel).
		With().Timestamp().Logger()
)

// SetLogger replaces the package logger, letting a host route pagelock's
// events into its own structured-logging pipeline (e.g. via
// joeycumines-go-utilpkg/logiface-zerolog's adapter upstream of this).
func SetLogger(l zerolog.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	log = l
}

func currentLogger() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return log
}
