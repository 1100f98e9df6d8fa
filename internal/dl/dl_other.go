//go:build !(darwin || freebsd || linux)

package dl

// System opens modules with the platform loader.
type System struct{}

// Open implements Loader.
func (System) Open(locator string) (Module, error) {
	return nil, &LoadError{Locator: Locate(locator), Msg: ErrUnsupported.Error()}
}
