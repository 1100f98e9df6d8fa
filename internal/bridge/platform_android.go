//go:build android

package bridge

/*
#cgo LDFLAGS: -llog
#include <android/log.h>
#include <stdlib.h>
*/
import "C"
import (
	"unsafe"

	"github.com/VAHHABSY/SlipstreamApp/internal/logging"
)

// platformLog writes to logcat.
func platformLog(level logging.Level, tag, message string) {
	prio := C.int(C.ANDROID_LOG_INFO)
	switch level {
	case logging.LevelDebug:
		prio = C.int(C.ANDROID_LOG_DEBUG)
	case logging.LevelWarning:
		prio = C.int(C.ANDROID_LOG_WARN)
	case logging.LevelError:
		prio = C.int(C.ANDROID_LOG_ERROR)
	}

	cTag := C.CString(tag)
	cMsg := C.CString(message)
	defer C.free(unsafe.Pointer(cTag))
	defer C.free(unsafe.Pointer(cMsg))

	C.__android_log_write(prio, cTag, cMsg)
}
