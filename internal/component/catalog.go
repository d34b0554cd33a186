package component

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Factory constructs a component handler. The returned value may implement
// any subset of the capability interfaces.
type Factory func(logger *slog.Logger) (any, error)

// Resolver resolves a handler reference to a handler value.
type Resolver interface {
	Resolve(ref string, logger *slog.Logger) (any, error)
}

// Catalog maps handler references to factories, enabling pluggable
// component handlers.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under the given reference.
// Existing entries for the same reference are overwritten.
func (c *Catalog) Register(ref string, factory Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.factories[ref] = factory
}

// Resolve constructs the handler registered under ref.
func (c *Catalog) Resolve(ref string, logger *slog.Logger) (any, error) {
	c.mu.RLock()
	f, ok := c.factories[ref]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown handler reference %q (available: %s)", ref, c.availableRefs())
	}

	return f(logger)
}

// Refs returns the sorted list of registered references.
func (c *Catalog) Refs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	refs := make([]string, 0, len(c.factories))
	for ref := range c.factories {
		refs = append(refs, ref)
	}

	sort.Strings(refs)

	return refs
}

func (c *Catalog) availableRefs() string {
	refs := c.Refs()
	if len(refs) == 0 {
		return "none"
	}

	return strings.Join(refs, ", ")
}

var _ Resolver = (*Catalog)(nil)
