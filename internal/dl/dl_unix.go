//go:build darwin || freebsd || linux

package dl

import (
	"github.com/ebitengine/purego"
)

// System opens modules with the platform loader.
type System struct{}

// Open implements Loader.
func (System) Open(locator string) (Module, error) {
	lib, err := Open(locator)
	if err != nil {
		return nil, err
	}
	return lib, nil
}

// Library is a module opened with dlopen.
type Library struct {
	handle uintptr
	path   string
}

// Open maps the module at locator with immediate, process-local binding.
func Open(locator string) (*Library, error) {
	path := Locate(locator)
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, &LoadError{Locator: path, Msg: err.Error()}
	}
	if handle == 0 {
		return nil, &LoadError{Locator: path, Msg: "null handle"}
	}
	return &Library{handle: handle, path: path}, nil
}

// Path implements Module.
func (l *Library) Path() string { return l.path }

// Lookup implements Module.
func (l *Library) Lookup(name string) (Proc, error) {
	if l == nil || l.handle == 0 {
		return nil, &LookupError{Symbol: name, Msg: "module not loaded"}
	}
	addr, err := purego.Dlsym(l.handle, name)
	if err != nil {
		return nil, classifyLookup(name, err.Error())
	}
	if addr == 0 {
		return nil, classifyLookup(name, "")
	}
	return symbol(addr), nil
}

// symbol is a raw function address.
type symbol uintptr

// Call implements Proc. Results are truncated to a C int.
func (s symbol) Call(args ...uintptr) int32 {
	r1, _, _ := purego.SyscallN(uintptr(s), args...)
	return int32(r1)
}
