// Package dl implements dlopen and related functionality for the bridge.
//
// A module opened here is never closed. Native entry points may leave
// threads and sockets running after they return, and those depend on the
// module's code and data staying mapped for the life of the process.
package dl

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// DefaultLibrary is the well-known module name used when no path is given.
const DefaultLibrary = "libslipstream.so"

// ErrSymbolNotFound reports that a module does not export the requested name.
var ErrSymbolNotFound = errors.New("symbol not found")

// ErrUnsupported is returned on platforms without dynamic loading.
var ErrUnsupported = errors.New("dynamic loading not supported on this platform")

// Proc is a resolved entry point in a loaded module.
type Proc interface {
	// Call invokes the entry point with raw C arguments and returns its int result.
	Call(args ...uintptr) int32
}

// Module is a loaded dynamic library.
type Module interface {
	// Path returns the locator the module was opened with.
	Path() string
	// Lookup resolves an exported symbol. Missing symbols return an error
	// wrapping ErrSymbolNotFound; any other failure is a *LookupError.
	Lookup(name string) (Proc, error)
}

// Loader opens modules.
type Loader interface {
	Open(locator string) (Module, error)
}

// LoadError describes a failed open.
type LoadError struct {
	Locator string
	Msg     string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("dlopen %s: %s", e.Locator, e.Msg)
}

// LookupError describes a symbol lookup that failed for a reason other than absence.
type LookupError struct {
	Symbol string
	Msg    string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("dlsym %s: %s", e.Symbol, e.Msg)
}

// notFoundMarkers are the dlerror fragments glibc, bionic, musl and dyld
// use for an undefined symbol.
var notFoundMarkers = []string{
	"undefined symbol",
	"cannot locate symbol",
	"not found",
}

// classifyLookup maps a dlsym failure message to ErrSymbolNotFound or a *LookupError.
func classifyLookup(symbol, msg string) error {
	if msg == "" {
		return fmt.Errorf("%s: %w", symbol, ErrSymbolNotFound)
	}
	lower := strings.ToLower(msg)
	for _, m := range notFoundMarkers {
		if strings.Contains(lower, m) {
			return fmt.Errorf("%s: %w (%s)", symbol, ErrSymbolNotFound, msg)
		}
	}
	return &LookupError{Symbol: symbol, Msg: msg}
}

// Locate returns locator, or DefaultLibrary when locator is empty.
func Locate(locator string) string {
	if strings.TrimSpace(locator) == "" {
		return DefaultLibrary
	}
	return locator
}

// ============================================================
// Process-wide retention
// ============================================================

var (
	keptMu sync.Mutex
	kept   []Module
)

// Keep records m for the remainder of the process. There is no way to
// remove an entry; opening the same locator twice keeps two entries.
func Keep(m Module) {
	if m == nil {
		return
	}
	keptMu.Lock()
	kept = append(kept, m)
	keptMu.Unlock()
}

// Kept returns a snapshot of every retained module in the order it was kept.
func Kept() []Module {
	keptMu.Lock()
	defer keptMu.Unlock()
	out := make([]Module, len(kept))
	copy(out, kept)
	return out
}

// IsKept reports whether m has been retained.
func IsKept(m Module) bool {
	keptMu.Lock()
	defer keptMu.Unlock()
	for _, k := range kept {
		if k == m {
			return true
		}
	}
	return false
}
