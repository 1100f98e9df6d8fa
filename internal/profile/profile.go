// Package profile persists named tunnel profiles and the current selection.
package profile

import (
	"errors"
	"strings"
)

// DefaultName is the profile used when nothing has been selected.
const DefaultName = "Default"

// DefaultPort is the SOCKS port of a fresh profile.
const DefaultPort = 1081

// ErrNotFound is returned when a named profile does not exist.
var ErrNotFound = errors.New("profile not found")

// Profile is one tunnel configuration.
type Profile struct {
	Name      string `json:"name"`
	Domain    string `json:"domain"`
	Resolvers string `json:"resolvers"`
	Port      int    `json:"port"`
}

// New returns a profile with the defaults filled in.
func New(name string) Profile {
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	return Profile{Name: name, Port: DefaultPort}
}

// Complete reports whether the profile carries enough to start a tunnel.
func (p Profile) Complete() bool {
	return strings.TrimSpace(p.Domain) != "" && strings.TrimSpace(p.Resolvers) != ""
}

// ResolverList splits the comma separated resolver string. Empty entries are dropped.
func (p Profile) ResolverList() []string {
	var out []string
	for _, r := range strings.Split(p.Resolvers, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
