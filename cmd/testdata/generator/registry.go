package generator

import (
	"fmt"
	"slices"

	"golang.org/x/exp/maps"
)

// Registry maps generator names to generator factory functions
// We use factory functions to allow parameterization (e.g., AppCount)
var Registry = map[string]func() Generator{
	"reviews": func() Generator {
		return &ReviewGenerator{AppCount: 100, InvalidRate: 0.01, ShortRate: 0.005}
	},
	"clean":  func() Generator { return &ReviewGenerator{AppCount: 100} },
	"skewed": func() Generator { return &ReviewGenerator{AppCount: 1000, Skew: 1.2, InvalidRate: 0.01} },
}

// Get returns a generator by name
func Get(name string) (Generator, error) {
	factory, exists := Registry[name]
	if !exists {
		return nil, fmt.Errorf("unknown generator: %s", name)
	}
	return factory(), nil
}

// List returns all available generator names in sorted order.
func List() []string {
	names := maps.Keys(Registry)
	slices.Sort(names)
	return names
}

// SetAppCount updates the AppCount of a registered review generator.
func SetAppCount(name string, count int) {
	factory, exists := Registry[name]
	if !exists {
		return
	}
	Registry[name] = func() Generator {
		g := factory()
		if rg, ok := g.(*ReviewGenerator); ok {
			rg.AppCount = count
		}
		return g
	}
}
