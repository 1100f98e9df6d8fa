//go:build darwin || freebsd || linux

package dl

import (
	"errors"
	"os"
	"runtime"
	"testing"
)

// systemLibc opens the C library or skips the test.
func systemLibc(t *testing.T) *Library {
	t.Helper()
	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{"/usr/lib/libSystem.B.dylib"}
	case "freebsd":
		candidates = []string{"libc.so.7"}
	default:
		candidates = []string{"libc.so.6", "libc.so"}
	}
	for _, c := range candidates {
		if lib, err := Open(c); err == nil {
			return lib
		}
	}
	t.Skip("no system C library found")
	return nil
}

func TestOpenMissingLibrary(t *testing.T) {
	_, err := Open("/nonexistent/libslipstream-missing.so")
	if err == nil {
		t.Fatal("expected error opening a missing library")
	}
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("error = %T, want *LoadError", err)
	}
	if le.Locator != "/nonexistent/libslipstream-missing.so" {
		t.Errorf("Locator = %q", le.Locator)
	}

	if _, err := (System{}).Open("/nonexistent/libslipstream-missing.so"); err == nil {
		t.Error("System.Open succeeded on a missing library")
	}
}

func TestLookupMissingSymbol(t *testing.T) {
	lib := systemLibc(t)

	_, err := lib.Lookup("slipstream_main")
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Fatalf("Lookup(slipstream_main) = %v, want ErrSymbolNotFound", err)
	}
}

func TestLookupAndCall(t *testing.T) {
	lib := systemLibc(t)

	proc, err := lib.Lookup("getpid")
	if err != nil {
		t.Fatalf("Lookup(getpid): %v", err)
	}
	if got := proc.Call(); int(got) != os.Getpid() {
		t.Errorf("getpid() = %d, want %d", got, os.Getpid())
	}

	abs, err := lib.Lookup("abs")
	if err != nil {
		t.Fatalf("Lookup(abs): %v", err)
	}
	neg := int32(-7)
	if got := abs.Call(uintptr(neg)); got != 7 {
		t.Errorf("abs(-7) = %d, want 7", got)
	}
}

func TestLookupOnNilLibrary(t *testing.T) {
	var lib *Library
	_, err := lib.Lookup("main")
	var le *LookupError
	if !errors.As(err, &le) {
		t.Fatalf("error = %v, want *LookupError", err)
	}
}
