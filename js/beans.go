package js

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBeanNotFound is returned when no instance, provider or factory was bound
// under the requested name.
var ErrBeanNotFound = errors.New("bean not found")

// Supplier returns the bean it was created for every time it's called.
type Supplier func() (interface{}, error)

type provider struct {
	once  sync.Once
	fn    func() (interface{}, error)
	value interface{}
	err   error
}

func (p *provider) get() (interface{}, error) {
	p.once.Do(func() {
		p.value, p.err = p.fn()
	})
	return p.value, p.err
}

type beans struct {
	mu        sync.RWMutex
	instances map[string]interface{}
	providers map[string]*provider
	factories map[string]func() (interface{}, error)
}

func newBeans() *beans {
	return &beans{
		instances: make(map[string]interface{}),
		providers: make(map[string]*provider),
		factories: make(map[string]func() (interface{}, error)),
	}
}

func (b *beans) has(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, i := b.instances[name]
	_, p := b.providers[name]
	_, f := b.factories[name]
	return i || p || f
}

func (b *beans) instance(name string) (interface{}, error) {
	b.mu.RLock()
	inst, isInstance := b.instances[name]
	prov, isProvider := b.providers[name]
	factory, isFactory := b.factories[name]
	b.mu.RUnlock()

	switch {
	case isInstance:
		return inst, nil
	case isProvider:
		v, err := prov.get()
		if err != nil {
			return nil, fmt.Errorf("couldn't provide bean %q: %w", name, err)
		}
		return v, nil
	case isFactory:
		return b.create(name, factory)
	default:
		return nil, fmt.Errorf("%w: %q", ErrBeanNotFound, name)
	}
}

// newBean returns a fresh value from a factory. Instances and providers are
// singletons, so for them it's the same as instance.
func (b *beans) newBean(name string) (interface{}, error) {
	b.mu.RLock()
	factory, ok := b.factories[name]
	b.mu.RUnlock()
	if !ok {
		return b.instance(name)
	}
	return b.create(name, factory)
}

func (b *beans) create(name string, factory func() (interface{}, error)) (interface{}, error) {
	v, err := factory()
	if err != nil {
		return nil, fmt.Errorf("couldn't create bean %q: %w", name, err)
	}
	return v, nil
}

func (b *beans) supplier(name string) (Supplier, error) {
	if !b.has(name) {
		return nil, fmt.Errorf("%w: %q", ErrBeanNotFound, name)
	}
	return func() (interface{}, error) {
		return b.instance(name)
	}, nil
}

// optional returns the bean if it's bound. Errors other than a missing bean
// are still reported.
func (b *beans) optional(name string) (interface{}, bool, error) {
	if !b.has(name) {
		return nil, false, nil
	}
	v, err := b.instance(name)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}
