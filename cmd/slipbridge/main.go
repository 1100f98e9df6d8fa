// Package main is the entry point for the slipbridge c-shared library.
// This file is built with -buildmode=c-shared to create libnative_runner.so
package main

import "C"

import (
	// Bridge exports the SlipBridge_* and JNI functions
	_ "github.com/VAHHABSY/SlipstreamApp/internal/bridge"
)

// main is required for c-shared build mode but is never called
func main() {}
