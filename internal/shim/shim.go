// Package shim loads the slipstream module and calls its entry point.
//
// One call to Invoke is one linear pass: open the module, resolve
// slipstream_main or main, call it, report an integer status. The shim
// starts no goroutines and cannot interrupt the entry point once called.
package shim

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/VAHHABSY/SlipstreamApp/internal/cstr"
	"github.com/VAHHABSY/SlipstreamApp/internal/dl"
)

// Status is the integer result returned to the host.
type Status int32

const (
	StatusOK Status = 0
	// StatusLoadFailed means the module could not be mapped.
	StatusLoadFailed Status = -1
	// StatusNoEntry means neither entry symbol is exported.
	StatusNoEntry Status = -2
	// StatusLookupFailed means dlsym reported an error other than a missing symbol.
	StatusLookupFailed Status = -3
	// StatusPanic is reported by the host bridge when Go code panics.
	StatusPanic Status = -4
)

// String returns a short description of reserved codes and the decimal value otherwise.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusLoadFailed:
		return "load failed"
	case StatusNoEntry:
		return "no entry symbol"
	case StatusLookupFailed:
		return "symbol lookup failed"
	case StatusPanic:
		return "bridge panic"
	default:
		return strconv.Itoa(int(s))
	}
}

// Entry symbol names, in lookup order.
const (
	SpecializedSymbol = "slipstream_main"
	GenericSymbol     = "main"
)

// ProgramName is argv[0] for the generic entry point.
const ProgramName = "slipstream"

// SocksPortFlag precedes the port in the synthesized argv.
const SocksPortFlag = "--socks-port"

// Request is one invocation. It lives only for the duration of Invoke.
type Request struct {
	// Locator is a filesystem path or well-known module name.
	// Empty selects dl.DefaultLibrary.
	Locator   string
	Domain    string
	Resolvers string
	Port      int
	// LogPath, when set, receives a timestamped copy of every diagnostic.
	LogPath string
}

// Argv returns the argument vector passed to the generic entry point.
func (r Request) Argv() []string {
	return []string{ProgramName, r.Domain, r.Resolvers, SocksPortFlag, strconv.Itoa(r.Port)}
}

// Options configures an Invoker.
type Options struct {
	// Loader opens modules. Defaults to the platform loader.
	Loader dl.Loader
	// Logger receives diagnostics. Overridden per call when the request
	// carries a log path and NewLogger is set.
	Logger *slog.Logger
	// NewLogger builds a per-call logger writing to logPath. The returned
	// func is called when the call ends.
	NewLogger func(logPath string) (*slog.Logger, func() error)
	// Hold blocks the caller this long after a successful call. Zero disables it.
	Hold time.Duration
	// Sleep waits for d or until ctx ends. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration)
}

// Invoker runs requests. It holds no per-call state and may be shared.
type Invoker struct {
	loader    dl.Loader
	logger    *slog.Logger
	newLogger func(string) (*slog.Logger, func() error)
	hold      time.Duration
	sleep     func(context.Context, time.Duration)
}

// New returns an Invoker.
func New(opts Options) *Invoker {
	inv := &Invoker{
		loader:    opts.Loader,
		logger:    opts.Logger,
		newLogger: opts.NewLogger,
		hold:      opts.Hold,
		sleep:     opts.Sleep,
	}
	if inv.loader == nil {
		inv.loader = dl.System{}
	}
	if inv.logger == nil {
		inv.logger = slog.Default()
	}
	if inv.sleep == nil {
		inv.sleep = sleepContext
	}
	return inv
}

// Invoke loads the module, calls exactly one entry point and returns its
// status. The module is never unloaded.
func (inv *Invoker) Invoke(ctx context.Context, req Request) Status {
	log := inv.logger
	if req.LogPath != "" && inv.newLogger != nil {
		l, closeLog := inv.newLogger(req.LogPath)
		defer closeLog()
		log = l
	}

	arena := cstr.NewArena()
	defer arena.Free()

	locator := dl.Locate(req.Locator)
	log.Info("Loading library", "path", locator)
	log.Info("Request", "domain", req.Domain, "resolvers", req.Resolvers, "port", req.Port)

	mod, err := inv.loader.Open(locator)
	if err != nil {
		log.Error("Failed to load library", "path", locator, "err", err)
		return StatusLoadFailed
	}
	// Entry points may leave threads running that need the module mapped.
	dl.Keep(mod)
	log.Info("Library loaded successfully")

	log.Debug("Resolving entry point", "first", SpecializedSymbol, "then", GenericSymbol)
	entry, err := Resolve(mod)
	switch entry.Kind {
	case EntrySpecialized:
		log.Info("Found slipstream_main, calling", "domain", req.Domain, "resolvers", req.Resolvers, "port", req.Port)
	case EntryGeneric:
		log.Info("slipstream_main not found, found main")
	default:
		if err != nil && !errors.Is(err, dl.ErrSymbolNotFound) {
			log.Error("Symbol lookup failed", "path", locator, "err", err)
			return StatusLookupFailed
		}
		log.Error("Neither slipstream_main nor main found in library", "path", locator, "err", err)
		return StatusNoEntry
	}

	status := inv.call(entry, req, arena, log)

	if status == StatusOK && inv.hold > 0 {
		log.Info("Holding after successful start", "duration", inv.hold)
		inv.sleep(ctx, inv.hold)
	}
	return status
}

// call dispatches to the resolved entry point.
func (inv *Invoker) call(entry Entry, req Request, arena *cstr.Arena, log *slog.Logger) Status {
	switch entry.Kind {
	case EntrySpecialized:
		domain := arena.String(req.Domain)
		resolvers := arena.String(req.Resolvers)
		rc := entry.Proc.Call(domain, resolvers, uintptr(int32(req.Port)))
		log.Info("slipstream_main returned", "rc", rc)
		return Status(rc)

	case EntryGeneric:
		args := req.Argv()
		ptrs := make([]uintptr, len(args))
		for i, a := range args {
			ptrs[i] = arena.String(a)
		}
		argv := arena.Vector(ptrs...)
		log.Info("Calling main", "argc", len(args))
		rc := entry.Proc.Call(uintptr(int32(len(args))), argv)
		log.Info("main returned", "rc", rc)
		return Status(rc)
	}
	return StatusNoEntry
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
