package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/VAHHABSY/SlipstreamApp/internal/cstr"
	"github.com/VAHHABSY/SlipstreamApp/internal/dl"
	"github.com/VAHHABSY/SlipstreamApp/internal/profile"
	"github.com/VAHHABSY/SlipstreamApp/internal/service"
	"github.com/VAHHABSY/SlipstreamApp/internal/shim"
)

// entryCall is one decoded slipstream_main call.
type entryCall struct {
	Domain    string
	Resolvers string
	Port      int
}

// fakeLoader serves a module whose slipstream_main records its arguments.
type fakeLoader struct {
	rc      int32
	noEntry bool
	called  chan struct{}

	mu     sync.Mutex
	opened []string
	calls  []entryCall
}

func newFakeLoader(rc int32) *fakeLoader {
	return &fakeLoader{rc: rc, called: make(chan struct{}, 1)}
}

func (l *fakeLoader) Open(locator string) (dl.Module, error) {
	l.mu.Lock()
	l.opened = append(l.opened, locator)
	l.mu.Unlock()
	return &fakeModule{path: locator, loader: l}, nil
}

type fakeModule struct {
	path   string
	loader *fakeLoader
}

func (m *fakeModule) Path() string { return m.path }

func (m *fakeModule) Lookup(name string) (dl.Proc, error) {
	if name != shim.SpecializedSymbol || m.loader.noEntry {
		return nil, fmt.Errorf("%s: %w", name, dl.ErrSymbolNotFound)
	}
	return fakeEntry{m.loader}, nil
}

type fakeEntry struct{ l *fakeLoader }

func (e fakeEntry) Call(args ...uintptr) int32 {
	c := entryCall{
		Domain:    cstr.GoString(args[0]),
		Resolvers: cstr.GoString(args[1]),
		Port:      int(int32(args[2])),
	}
	e.l.mu.Lock()
	e.l.calls = append(e.l.calls, c)
	e.l.mu.Unlock()
	select {
	case e.l.called <- struct{}{}:
	default:
	}
	return e.l.rc
}

func (l *fakeLoader) snapshot() ([]string, []entryCall) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.opened...), append([]entryCall(nil), l.calls...)
}

func withLoader(t *testing.T, l dl.Loader) {
	t.Helper()
	prev := loader
	loader = l
	t.Cleanup(func() { loader = prev })
}

// runEnv is a working directory with a config file and a profile database path.
type runEnv struct {
	config string
	db     string
}

func newRunEnv(t *testing.T) runEnv {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	env := runEnv{
		config: filepath.Join(dir, "slipbridge.jsonc"),
		db:     filepath.Join(dir, "data", "profiles.db"),
	}
	body := `{
		"library": "/opt/slipstream/libslipstream.so",
		"default_port": 1500,
		"startup_window_ms": 0, // report running at once
	}`
	if err := os.WriteFile(env.config, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return env
}

func (e runEnv) args(extra ...string) []string {
	return append([]string{"run", "--config", e.config, "--db", e.db}, extra...)
}

func (e runEnv) seed(t *testing.T, current string, profiles ...profile.Profile) {
	t.Helper()
	store, err := profile.Open(e.db)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	for _, p := range profiles {
		if err := store.Save(p); err != nil {
			t.Fatal(err)
		}
	}
	if current != "" {
		if err := store.SetCurrent(current); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunResolvesProfile(t *testing.T) {
	home := profile.Profile{Name: "home", Domain: "h.example.com", Resolvers: "9.9.9.9:53", Port: 1090}
	work := profile.Profile{Name: "work", Domain: "w.example.com", Resolvers: "8.8.8.8:53", Port: 1091}

	tests := []struct {
		name    string
		seed    bool
		current string
		flags   []string
		want    entryCall
		wantDB  bool
	}{
		{
			name:  "flags only use config port",
			flags: []string{"--domain", "a.example.com", "--resolvers", "1.1.1.1:53"},
			want:  entryCall{"a.example.com", "1.1.1.1:53", 1500},
		},
		{
			name:  "flags only with port",
			flags: []string{"--domain", "a.example.com", "--resolvers", "1.1.1.1:53", "--port", "2000"},
			want:  entryCall{"a.example.com", "1.1.1.1:53", 2000},
		},
		{
			name:   "named profile",
			seed:   true,
			flags:  []string{"--profile", "home"},
			want:   entryCall{"h.example.com", "9.9.9.9:53", 1090},
			wantDB: true,
		},
		{
			name:   "named profile with override",
			seed:   true,
			flags:  []string{"--profile", "home", "--domain", "o.example.com"},
			want:   entryCall{"o.example.com", "9.9.9.9:53", 1090},
			wantDB: true,
		},
		{
			name:    "current profile",
			seed:    true,
			current: "work",
			want:    entryCall{"w.example.com", "8.8.8.8:53", 1091},
			wantDB:  true,
		},
		{
			name:    "current profile completed by flag",
			seed:    true,
			current: "home",
			flags:   []string{"--resolvers", "4.4.4.4:53"},
			want:    entryCall{"h.example.com", "4.4.4.4:53", 1090},
			wantDB:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newRunEnv(t)
			if tt.seed {
				env.seed(t, tt.current, home, work)
			}
			l := newFakeLoader(0)
			withLoader(t, l)

			args := env.args(append(tt.flags, "--exit-on-return")...)
			if out, err := executeContext(context.Background(), args...); err != nil {
				t.Fatalf("run: %v\n%s", err, out)
			}

			opened, calls := l.snapshot()
			if len(opened) != 1 || opened[0] != "/opt/slipstream/libslipstream.so" {
				t.Errorf("opened = %v", opened)
			}
			if len(calls) != 1 || calls[0] != tt.want {
				t.Errorf("calls = %+v, want %+v", calls, tt.want)
			}
			if _, err := os.Stat(env.db); (err == nil) != tt.wantDB {
				t.Errorf("database created = %v, want %v", err == nil, tt.wantDB)
			}
		})
	}
}

func TestRunLibraryFlag(t *testing.T) {
	env := newRunEnv(t)
	l := newFakeLoader(0)
	withLoader(t, l)

	args := env.args("--lib", "/x/libother.so", "--domain", "a.example.com", "--resolvers", "1.1.1.1", "--exit-on-return")
	if out, err := executeContext(context.Background(), args...); err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if opened, _ := l.snapshot(); len(opened) != 1 || opened[0] != "/x/libother.so" {
		t.Errorf("opened = %v", opened)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name     string
		rc       int32
		noEntry  bool
		flags    []string
		wantCode int
		wantErr  error
	}{
		{name: "entry status", rc: 7, flags: []string{"--domain", "a.example.com", "--resolvers", "1.1.1.1"}, wantCode: 7},
		{name: "no entry", noEntry: true, flags: []string{"--domain", "a.example.com", "--resolvers", "1.1.1.1"}, wantCode: int(shim.StatusNoEntry)},
		{name: "unknown profile", flags: []string{"--profile", "nope"}, wantErr: profile.ErrNotFound},
		{name: "incomplete profile", flags: []string{"--domain", "a.example.com"}, wantErr: service.ErrMissingConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newRunEnv(t)
			l := newFakeLoader(tt.rc)
			l.noEntry = tt.noEntry
			withLoader(t, l)

			_, err := executeContext(context.Background(), env.args(tt.flags...)...)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			var exit *ExitError
			if !errors.As(err, &exit) || exit.Code != tt.wantCode {
				t.Errorf("err = %v, want exit status %d", err, tt.wantCode)
			}
		})
	}
}

func TestRunStaysAliveAfterSuccess(t *testing.T) {
	env := newRunEnv(t)
	l := newFakeLoader(0)
	withLoader(t, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := executeContext(ctx, env.args("--domain", "a.example.com", "--resolvers", "1.1.1.1")...)
		done <- err
	}()

	select {
	case <-l.called:
	case <-time.After(2 * time.Second):
		t.Fatal("entry point not called")
	}
	select {
	case err := <-done:
		t.Fatalf("run returned %v before interruption", err)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run = %v after interruption", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after interruption")
	}
}

func TestRunHoldFlagDefault(t *testing.T) {
	f := runCmd.Flags().Lookup("hold")
	if f.DefValue != "0s" {
		t.Errorf("hold default = %q, want 0s", f.DefValue)
	}
}

func TestRunHelpDocumentsReservedExitCodes(t *testing.T) {
	for _, want := range []string{"-1 (load failed) as 255", "-2 (no entry symbol)\nas 254", "-3 (symbol lookup failed) as 253"} {
		if !strings.Contains(runCmd.Long, want) {
			t.Errorf("run help lacks %q", want)
		}
	}
}
