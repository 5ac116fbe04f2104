package sim

import (
	"sync"
)

// A Named object is an object that has a name.
type Named interface {
	Name() string
}

// A Component is a piece of simulated hardware that handles its own events.
type Component interface {
	Named
	Handler
	Hookable
}

// ComponentBase provides the name and hooks of a component, as well as a
// lock guarding the component state.
type ComponentBase struct {
	HookableBase
	sync.Mutex

	name string
}

// NewComponentBase creates a new ComponentBase.
func NewComponentBase(name string) *ComponentBase {
	c := new(ComponentBase)
	c.name = name

	return c
}

// Name returns the name of the component.
func (c *ComponentBase) Name() string {
	return c.name
}
