package shim

import (
	"errors"

	"github.com/VAHHABSY/SlipstreamApp/internal/dl"
)

// EntryKind tags which entry point a module offers.
type EntryKind int

const (
	EntryNotFound EntryKind = iota
	// EntrySpecialized is slipstream_main(const char*, const char*, int).
	EntrySpecialized
	// EntryGeneric is main(int, char**).
	EntryGeneric
)

func (k EntryKind) String() string {
	switch k {
	case EntrySpecialized:
		return SpecializedSymbol
	case EntryGeneric:
		return GenericSymbol
	default:
		return "none"
	}
}

// Entry is the resolved entry point of a module.
type Entry struct {
	Kind EntryKind
	Proc dl.Proc
}

// Resolve looks up slipstream_main, then main. main is only looked up
// once slipstream_main is confirmed missing. A lookup error other than
// "not found" stops the search and is returned with EntryNotFound.
func Resolve(mod dl.Module) (Entry, error) {
	proc, err := mod.Lookup(SpecializedSymbol)
	if err == nil && proc != nil {
		return Entry{Kind: EntrySpecialized, Proc: proc}, nil
	}
	if err != nil && !errors.Is(err, dl.ErrSymbolNotFound) {
		return Entry{Kind: EntryNotFound}, err
	}

	proc, err = mod.Lookup(GenericSymbol)
	if err == nil && proc != nil {
		return Entry{Kind: EntryGeneric, Proc: proc}, nil
	}
	if err == nil {
		err = dl.ErrSymbolNotFound
	}
	return Entry{Kind: EntryNotFound}, err
}
