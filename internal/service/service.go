// Package service supervises one slipstream run for a host application.
//
// The native entry point may block for the life of the tunnel, so the
// service calls it on its own goroutine and reports progress through
// status and log callbacks. It owns the startup window the host waits
// through before treating the tunnel as up.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/VAHHABSY/SlipstreamApp/internal/profile"
	"github.com/VAHHABSY/SlipstreamApp/internal/shim"
)

var (
	// ErrMissingConfig is returned when a profile lacks a domain or resolvers.
	ErrMissingConfig = errors.New("missing domain or resolvers")
	// ErrAlreadyRunning is returned while a native call started since the last Stop is in flight.
	ErrAlreadyRunning = errors.New("slipstream is already running")
	// ErrNotStarted is returned by Wait before the first Start.
	ErrNotStarted = errors.New("slipstream was not started")
)

// Invoker runs one shim request.
type Invoker interface {
	Invoke(ctx context.Context, req shim.Request) shim.Status
}

// Options configures a Runner.
type Options struct {
	// Library is the module locator. Empty selects the default library.
	Library string
	// LogPath is forwarded to the shim for file diagnostics.
	LogPath string
	// StartupWindow is how long to wait before reporting Running.
	StartupWindow time.Duration
	Logger        *slog.Logger
	// OnStatus is called on every status transition.
	OnStatus func(Status)
	// OnLog receives "[HH:MM:SS] message" lines.
	OnLog func(line string)
	Now   func() time.Time
}

// Runner starts and tracks slipstream runs.
type Runner struct {
	inv  Invoker
	opts Options

	mu       sync.Mutex
	status   Status
	session  string
	gen      int
	inFlight bool
	active   *run
}

// run is one native call. rc is valid once done is closed.
type run struct {
	done chan struct{}
	rc   shim.Status
}

// New returns a stopped Runner.
func New(inv Invoker, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StartupWindow < 0 {
		opts.StartupWindow = 0
	}
	return &Runner{
		inv:    inv,
		opts:   opts,
		status: Status{Tunnel: TunnelStopped, Socks: SocksStopped},
	}
}

// Status returns the latest status.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Session returns the id of the current or last run.
func (r *Runner) Session() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Start validates p and launches the shim on a background goroutine. A run
// detached by Stop no longer counts as in flight.
func (r *Runner) Start(ctx context.Context, p profile.Profile) error {
	r.log("[Service] Service starting...")

	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	if !p.Complete() {
		gen := r.gen
		r.mu.Unlock()
		r.log("[Service] ERROR: Missing domain or resolvers")
		r.setStatus(Status{Tunnel: TunnelFailed, Message: "Missing configuration", Socks: SocksStopped}, gen)
		return ErrMissingConfig
	}
	r.gen++
	gen := r.gen
	r.session = uuid.NewString()
	r.inFlight = true
	cur := &run{done: make(chan struct{})}
	r.active = cur
	r.mu.Unlock()

	r.log(fmt.Sprintf("[Service] Service starting - Domain: %s, Port: %d", p.Domain, p.Port))
	r.setStatus(Status{Tunnel: TunnelStarting, Message: "Starting tunnel...", Socks: SocksWaiting}, gen)

	req := shim.Request{
		Locator:   r.opts.Library,
		Domain:    p.Domain,
		Resolvers: p.Resolvers,
		Port:      p.Port,
		LogPath:   r.opts.LogPath,
	}

	go func() {
		r.log("[Service] Starting slipstream via native bridge...")
		rc := r.inv.Invoke(ctx, req)

		r.mu.Lock()
		cur.rc = rc
		current := r.gen == gen
		if current {
			r.inFlight = false
		}
		close(cur.done)
		r.mu.Unlock()

		if !current {
			return
		}
		r.log(fmt.Sprintf("[Service] Slipstream finished with rc=%d", rc))
		if rc != shim.StatusOK {
			r.setStatus(Status{Tunnel: TunnelFailed, Message: fmt.Sprintf("Slipstream rc=%d", rc), Socks: SocksStopped}, gen)
		}
	}()

	go func() {
		t := time.NewTimer(r.opts.StartupWindow)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		}
		if r.promote(gen) {
			r.log(fmt.Sprintf("[Service] Tunnel started successfully, SOCKS5 proxy on port %d", p.Port))
		}
	}()

	return nil
}

// promote moves a still-starting run of generation gen to Running.
func (r *Runner) promote(gen int) bool {
	r.mu.Lock()
	if r.gen != gen || r.status.Tunnel != TunnelStarting {
		r.mu.Unlock()
		return false
	}
	r.status = Status{Tunnel: TunnelRunning, Socks: SocksRunning}
	s, cb := r.status, r.opts.OnStatus
	r.mu.Unlock()

	if cb != nil {
		cb(s)
	}
	return true
}

// Stop detaches from the current run and reports it stopped. The native
// call cannot be interrupted; its eventual result is discarded and a new
// Start may launch another call.
func (r *Runner) Stop() {
	r.log("[Service] Stopping tunnel...")

	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.inFlight = false
	r.mu.Unlock()

	r.setStatus(Status{Tunnel: TunnelStopping, Socks: SocksStopping}, gen)
	r.setStatus(Status{Tunnel: TunnelStopped, Socks: SocksStopped}, gen)
}

// Wait blocks until the native call of the latest run returns or ctx ends.
func (r *Runner) Wait(ctx context.Context) (shim.Status, error) {
	r.mu.Lock()
	cur := r.active
	r.mu.Unlock()
	if cur == nil {
		return 0, ErrNotStarted
	}

	select {
	case <-cur.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return cur.rc, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// setStatus publishes s when gen is current.
func (r *Runner) setStatus(s Status, gen int) bool {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return false
	}
	r.status = s
	cb := r.opts.OnStatus
	r.mu.Unlock()

	if cb != nil {
		cb(s)
	}
	return true
}

func (r *Runner) log(msg string) {
	r.mu.Lock()
	session := r.session
	r.mu.Unlock()

	if session != "" {
		r.opts.Logger.Info(msg, "session", session)
	} else {
		r.opts.Logger.Info(msg)
	}
	if r.opts.OnLog != nil {
		r.opts.OnLog(fmt.Sprintf("[%s] %s", r.opts.Now().Format("15:04:05"), msg))
	}
}
