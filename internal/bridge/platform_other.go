//go:build !android

package bridge

import "github.com/VAHHABSY/SlipstreamApp/internal/logging"

// platformLog writes to stderr.
func platformLog(level logging.Level, tag, message string) {
	logging.Stderr(level, tag, message)
}
