package manifest

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/chenyanchen/modreg"
)

// Catalog maps the module names used in manifests to Go types.
type Catalog struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

func NewCatalog() *Catalog {
	return &Catalog{types: make(map[string]reflect.Type)}
}

// Add binds name to t. Names are unique.
func (c *Catalog) Add(name string, t reflect.Type) error {
	if name == "" {
		return fmt.Errorf("catalog add: empty name")
	}
	if t == nil {
		return fmt.Errorf("catalog add %q: type is nil", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, exists := c.types[name]; exists {
		return fmt.Errorf("catalog add %q: already bound to %s", name, prev)
	}
	c.types[name] = t
	return nil
}

// AddType is a typed wrapper around Add.
func AddType[T any](c *Catalog, name string) error {
	return c.Add(name, modreg.TypeOf[T]())
}

func (c *Catalog) Lookup(name string) (reflect.Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.types[name]
	return t, ok
}

// Names returns the bound names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	c.mu.RUnlock()
	slices.Sort(names)
	return names
}

// NameOf returns the name bound to t, if any.
func (c *Catalog) NameOf(t reflect.Type) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for name, bound := range c.types {
		if bound == t {
			return name, true
		}
	}
	return "", false
}
