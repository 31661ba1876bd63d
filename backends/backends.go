// Package backends resolves delivery backend identifiers to constructed
// transports. Providers register themselves from their package init, the way
// database/sql drivers do, so hosts pull in only the vendors they use:
//
//	import _ "github.com/CuriousLearner/phone-verify/backends/twilio"
package backends

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/CuriousLearner/phone-verify/core"
)

// Factory builds a backend from provider-specific options. Option keys are
// matched case-insensitively.
type Factory func(options map[string]string) (core.Backend, error)

var (
	// ErrNotInstalled marks a known provider family whose package was not
	// imported into the binary.
	ErrNotInstalled = errors.New("backend is not installed")

	// ErrLoadFailed marks an identifier that could not be resolved to a
	// working backend for any other reason.
	ErrLoadFailed = errors.New("failed to load backend")
)

// knownFamilies are the provider families we ship. An unregistered
// identifier belonging to one of these gets a pointed install hint instead
// of a generic load failure.
var knownFamilies = []string{"twilio", "nexmo"}

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// Register makes a backend available under the given identifier. It is meant
// to be called from provider package init functions and panics on duplicate
// registration, mirroring sql.Register.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	if factory == nil {
		panic("phoneverify: Register called with nil factory")
	}
	if _, dup := registry[name]; dup {
		panic("phoneverify: Register called twice for backend " + name)
	}
	registry[name] = factory
}

// Resolve constructs the backend for the identifier. Unregistered
// identifiers from a known provider family yield ErrNotInstalled naming the
// provider; anything else unresolvable yields ErrLoadFailed with the
// identifier.
func Resolve(name string, options map[string]string) (core.Backend, error) {
	mu.RLock()
	factory, ok := registry[name]
	mu.RUnlock()
	if !ok {
		for _, family := range knownFamilies {
			if strings.Contains(strings.ToLower(name), family) {
				return nil, fmt.Errorf("phoneverify: %s %w: import %s/backends/%s to use this provider",
					family, ErrNotInstalled, modulePath, family)
			}
		}
		return nil, fmt.Errorf("phoneverify: %w: no backend registered as %q", ErrLoadFailed, name)
	}
	backend, err := factory(options)
	if err != nil {
		return nil, fmt.Errorf("phoneverify: %w %q: %v", ErrLoadFailed, name, err)
	}
	return backend, nil
}

const modulePath = "github.com/CuriousLearner/phone-verify"

// Resolver resolves a backend identifier exactly once per process and caches
// the result, including a resolution failure. First use is safe under
// concurrency.
type Resolver struct {
	name    string
	options map[string]string

	once    sync.Once
	backend core.Backend
	err     error
}

// NewResolver prepares a lazy resolver. Nothing is constructed until the
// first Backend call.
func NewResolver(name string, options map[string]string) *Resolver {
	return &Resolver{name: name, options: options}
}

// Backend returns the resolved backend, resolving on first call only.
func (r *Resolver) Backend() (core.Backend, error) {
	r.once.Do(func() {
		r.backend, r.err = Resolve(r.name, r.options)
	})
	return r.backend, r.err
}
