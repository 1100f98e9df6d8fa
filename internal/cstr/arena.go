// Package cstr owns C memory handed to native code.
// Every buffer is malloc'd, NUL-terminated and writable by the callee.
package cstr

/*
#include <stdlib.h>
#include <string.h>
#include <stdint.h>

static inline char* cstr_dup(const char* p, size_t n) {
    char* out = (char*)malloc(n + 1);
    if (out == NULL) {
        return NULL;
    }
    if (n > 0) {
        memcpy(out, p, n);
    }
    out[n] = '\0';
    return out;
}

static inline uintptr_t* cstr_vector(size_t n) {
    return (uintptr_t*)calloc(n + 1, sizeof(uintptr_t));
}
*/
import "C"
import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// outstanding counts live allocations and unreleased adoptions across all arenas.
var outstanding atomic.Int64

// Outstanding returns the number of buffers and adopted resources not yet released.
func Outstanding() int64 {
	return outstanding.Load()
}

// Arena collects C allocations and borrowed resources for one call.
// Free releases each of them exactly once.
type Arena struct {
	mu       sync.Mutex
	ptrs     []unsafe.Pointer
	releases []func()
	freed    bool
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// String copies s into a new malloc'd buffer and returns its address.
// Returns 0 if the allocation fails or the arena was already freed.
func (a *Arena) String(s string) uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.freed {
		return 0
	}

	var src *C.char
	if len(s) > 0 {
		src = (*C.char)(unsafe.Pointer(unsafe.StringData(s)))
	}
	p := C.cstr_dup(src, C.size_t(len(s)))
	if p == nil {
		return 0
	}
	a.track(unsafe.Pointer(p))
	return uintptr(unsafe.Pointer(p))
}

// Vector allocates a NULL-terminated array holding ptrs, the shape of argv.
func (a *Arena) Vector(ptrs ...uintptr) uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.freed {
		return 0
	}

	vec := C.cstr_vector(C.size_t(len(ptrs)))
	if vec == nil {
		return 0
	}
	slots := unsafe.Slice((*C.uintptr_t)(unsafe.Pointer(vec)), len(ptrs)+1)
	for i, p := range ptrs {
		slots[i] = C.uintptr_t(p)
	}
	a.track(unsafe.Pointer(vec))
	return uintptr(unsafe.Pointer(vec))
}

// Adopt registers a release function for a resource the arena does not allocate,
// such as a string borrowed from the host runtime.
// If the arena is already freed, release runs immediately.
func (a *Arena) Adopt(release func()) {
	if release == nil {
		return
	}
	a.mu.Lock()
	if a.freed {
		a.mu.Unlock()
		release()
		return
	}
	outstanding.Add(1)
	a.releases = append(a.releases, release)
	a.mu.Unlock()
}

// Len returns the number of live entries held by the arena.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.ptrs) + len(a.releases)
}

// Free releases every buffer and adopted resource. Safe to call more than once.
// Adopted releases run in reverse order of adoption.
func (a *Arena) Free() {
	a.mu.Lock()
	if a.freed {
		a.mu.Unlock()
		return
	}
	a.freed = true
	ptrs, releases := a.ptrs, a.releases
	a.ptrs, a.releases = nil, nil
	a.mu.Unlock()

	for _, p := range ptrs {
		C.free(p)
		outstanding.Add(-1)
	}
	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
		outstanding.Add(-1)
	}
}

func (a *Arena) track(p unsafe.Pointer) {
	outstanding.Add(1)
	a.ptrs = append(a.ptrs, p)
}

// GoString copies the NUL-terminated string at p. Returns "" for 0.
func GoString(p uintptr) string {
	if p == 0 {
		return ""
	}
	return C.GoString((*C.char)(unsafe.Pointer(p)))
}

// Index reads element i of the pointer vector at vec.
func Index(vec uintptr, i int) uintptr {
	if vec == 0 || i < 0 {
		return 0
	}
	slots := unsafe.Slice((*C.uintptr_t)(unsafe.Pointer(vec)), i+1)
	return uintptr(slots[i])
}
