// Package bridge provides the CGO bridge between the host application and the Go shim.
// This file contains all functions exported to C via CGO.
package bridge

/*
#cgo CFLAGS: -I${SRCDIR}/../../native/include -DSLIPBRIDGE_NO_PROTOTYPES
#include "slipbridge_abi.h"
#include <stdlib.h>
*/
import "C"
import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/VAHHABSY/SlipstreamApp/internal/config"
	"github.com/VAHHABSY/SlipstreamApp/internal/dl"
	"github.com/VAHHABSY/SlipstreamApp/internal/logging"
	"github.com/VAHHABSY/SlipstreamApp/internal/shim"
)

// ============================================================
// Global State
// ============================================================

var (
	initialized bool
	initMu      sync.Mutex
	cfg         *config.Config
	invoker     *shim.Invoker
	// loader is swapped by tests.
	loader dl.Loader = dl.System{}

	lastError   string
	lastErrorMu sync.Mutex
)

// ============================================================
// Error Handling
// ============================================================

// setLastError stores an error message for later retrieval by the host
func setLastError(format string, args ...interface{}) {
	lastErrorMu.Lock()
	lastError = fmt.Sprintf(format, args...)
	lastErrorMu.Unlock()
}

// clearLastError clears the last error
func clearLastError() {
	lastErrorMu.Lock()
	lastError = ""
	lastErrorMu.Unlock()
}

func getLastError() string {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	return lastError
}

// ============================================================
// Panic Recovery
// ============================================================

// safeCallStatus wraps a function with panic recovery.
// Returns StatusPanic if a panic occurred.
func safeCallStatus(fn func() int32) (status int32) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			setLastError("panic: %v\n%s", r, stack)
			logError("PANIC", "Recovered from panic: %v", r)
			status = StatusPanic
		}
	}()
	return fn()
}

// ============================================================
// Configuration
// ============================================================

// configure loads the config at path, or the first file found in
// config.SearchPaths when path is empty, and rebuilds the invoker.
func configure(path string) error {
	initMu.Lock()
	defer initMu.Unlock()

	var (
		c      *config.Config
		source string
		err    error
	)
	if path != "" {
		c, err = config.Load(path)
		source = path
	} else {
		c, source, err = config.LoadFirst(config.SearchPaths...)
	}
	if err != nil {
		return err
	}

	apply(c)
	if source != "" {
		logInfo(Tag, "Configuration loaded from %s", source)
	}
	return nil
}

// ensureInit applies the default search when the host never configured the bridge.
func ensureInit() {
	initMu.Lock()
	done := initialized
	initMu.Unlock()
	if done {
		return
	}
	if err := configure(""); err != nil {
		logError(Tag, "Configuration ignored: %v", err)
		initMu.Lock()
		if !initialized {
			apply(config.Default())
		}
		initMu.Unlock()
	}
}

// apply installs c. Caller holds initMu.
func apply(c *config.Config) {
	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}
	base, _ := logging.New(logging.Options{Tag: Tag, Sink: hostSink, Level: level})

	cfg = c
	invoker = shim.New(shim.Options{
		Loader: loader,
		Logger: base,
		NewLogger: func(logPath string) (*slog.Logger, func() error) {
			return logging.New(logging.Options{Tag: Tag, Sink: hostSink, Level: level, FilePath: logPath})
		},
		Hold: c.Hold(),
	})
	initialized = true
}

// ============================================================
// Invocation
// ============================================================

// run fills request defaults from the configuration and invokes the shim.
func run(req shim.Request) int32 {
	return safeCallStatus(func() int32 {
		ensureInit()

		initMu.Lock()
		c, inv := cfg, invoker
		initMu.Unlock()

		if req.Locator == "" {
			req.Locator = c.Library
		}
		if req.LogPath == "" {
			req.LogPath = c.LogFile
		}

		status := inv.Invoke(context.Background(), req)
		switch status {
		case shim.StatusLoadFailed, shim.StatusNoEntry, shim.StatusLookupFailed:
			setLastError("%s: %s", dl.Locate(req.Locator), status)
		}
		return int32(status)
	})
}

// goString converts a possibly NULL C string.
func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}

// ============================================================
// Exported Functions (called by the host)
// ============================================================

//export SlipBridge_Run
func SlipBridge_Run(libPath, domain, resolvers *C.char, port C.int32_t, logPath *C.char) C.int32_t {
	req := shim.Request{
		Locator:   goString(libPath),
		Domain:    goString(domain),
		Resolvers: goString(resolvers),
		Port:      int(port),
		LogPath:   goString(logPath),
	}
	return C.int32_t(run(req))
}

//export SlipBridge_Configure
func SlipBridge_Configure(path *C.char) C.int32_t {
	return C.int32_t(safeCallStatus(func() int32 {
		if err := configure(goString(path)); err != nil {
			setLastError("%v", err)
			logError(Tag, "Configuration failed: %v", err)
			return StatusConfig
		}
		return StatusOK
	}))
}

//export SlipBridge_RegisterLogCallback
func SlipBridge_RegisterLogCallback(fn C.sb_log_fn) {
	setLogCallback(fn)
	logInfo(Tag, "Host log callback registered")
}

//export SlipBridge_GetLastError
func SlipBridge_GetLastError() *C.char {
	msg := getLastError()
	if msg == "" {
		return nil
	}

	// Caller must free this memory
	return C.CString(msg)
}

//export SlipBridge_ClearLastError
func SlipBridge_ClearLastError() {
	clearLastError()
}

//export SlipBridge_GetABIVersion
func SlipBridge_GetABIVersion() C.int32_t {
	return C.SLIPBRIDGE_ABI_VERSION
}
