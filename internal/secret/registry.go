package secret

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Options configures a backend opened through a Registry.
type Options struct {
	Service    string
	Path       string
	Passphrase string
}

// Factory builds a Store from Options.
type Factory func(opts Options) (Store, error)

// Registry maps backend names (e.g., "keyring") to Store factories.
type Registry struct {
	entries map[string]Factory
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with the keyring, file, and memory backends.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("keyring", func(opts Options) (Store, error) {
		return NewKeyring(opts.Service), nil
	})
	r.Register("file", func(opts Options) (Store, error) {
		path := opts.Path
		if path == "" {
			path = DefaultFilePath()
		}
		return NewEncryptedFile(path, opts.Passphrase), nil
	})
	r.Register("memory", func(Options) (Store, error) {
		return NewMemory(), nil
	})
	return r
}

// Register associates a backend name with a factory. Names are case-insensitive.
func (r *Registry) Register(name string, f Factory) {
	r.entries[strings.ToLower(name)] = f
}

// Open builds the named backend.
// Returns an error if no matching backend is registered.
func (r *Registry) Open(name string, opts Options) (Store, error) {
	f, ok := r.entries[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown secret store %q (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	return f(opts)
}

// Names returns the registered backend names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultFilePath returns the default location of the encrypted file store.
func DefaultFilePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "deviceauth", "sessions.enc")
}
