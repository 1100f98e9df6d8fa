// Package bridge provides the CGO bridge between the host application and the Go shim.
// This file contains the host log callback and logging helpers.
package bridge

/*
#cgo CFLAGS: -I${SRCDIR}/../../native/include -DSLIPBRIDGE_NO_PROTOTYPES
#include "slipbridge_abi.h"
#include <stdlib.h>

static inline void call_log(sb_log_fn fn, int32_t level, const char* tag, const char* msg) {
    if (fn) {
        fn(level, tag, msg);
    }
}
*/
import "C"
import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/VAHHABSY/SlipstreamApp/internal/logging"
)

var (
	logFnMu sync.RWMutex
	logFn   C.sb_log_fn
)

func setLogCallback(fn C.sb_log_fn) {
	logFnMu.Lock()
	logFn = fn
	logFnMu.Unlock()
}

// hostSink forwards a message to the host callback, or to the platform log
// when no callback is registered.
func hostSink(level logging.Level, tag, message string) {
	logFnMu.RLock()
	fn := logFn
	logFnMu.RUnlock()

	if fn == nil {
		platformLog(level, tag, message)
		return
	}

	cTag := C.CString(tag)
	cMsg := C.CString(message)
	defer C.free(unsafe.Pointer(cTag))
	defer C.free(unsafe.Pointer(cMsg))

	C.call_log(fn, C.int32_t(level), cTag, cMsg)
}

// Log sends a message to the host log
func Log(level int, tag, message string) {
	hostSink(logging.Level(level), tag, message)
}

func logInfo(tag, format string, args ...interface{}) {
	Log(LogLevelInfo, tag, fmt.Sprintf(format, args...))
}

func logError(tag, format string, args ...interface{}) {
	Log(LogLevelError, tag, fmt.Sprintf(format, args...))
}
