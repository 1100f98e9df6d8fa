// Package bridge provides the CGO bridge between the host application and the Go shim.
// This file contains type definitions shared between the bridge and other packages.
package bridge

// ABIVersion matches SLIPBRIDGE_ABI_VERSION in slipbridge_abi.h
const ABIVersion = 1

// Log levels matching C sb_log_level_t
const (
	LogLevelDebug   = 0
	LogLevelInfo    = 1
	LogLevelWarning = 2
	LogLevelError   = 3
)

// Status codes matching C sb_status_t
const (
	StatusOK      = 0
	StatusLoad    = -1 // Module could not be loaded
	StatusNoEntry = -2 // Neither entry symbol exported
	StatusLookup  = -3 // dlsym failed for another reason
	StatusPanic   = -4 // Bridge recovered from a panic
	StatusConfig  = -5 // Configuration file invalid
)

// Tag is the platform log tag used by the bridge.
const Tag = "NativeRunner"
