package usecase

import (
	"errors"
	"fmt"
	"sort"

	"github.com/feedcanon/backend/internal/domain"
)

// Variant is a merchant-specific extraction rule. The boolean result reports
// whether the row yielded anything; false with a nil error means the rule
// found nothing to derive.
type Variant[T any] interface {
	Extract(row domain.Row) (T, bool, error)
}

// VariantFunc adapts a plain function to the Variant interface
type VariantFunc[T any] func(row domain.Row) (T, bool, error)

// Extract calls f(row)
func (f VariantFunc[T]) Extract(row domain.Row) (T, bool, error) {
	return f(row)
}

// FallbackFactory builds the default variant for a merchant without a
// registered one
type FallbackFactory[T any] func(merchant string) (Variant[T], error)

// Dispatcher routes merchants to their registered variants. The registry is
// fixed at construction and only read afterwards.
type Dispatcher[T any] struct {
	kind     string
	variants map[string]Variant[T]
	fallback FallbackFactory[T]
}

// NewDispatcher creates a dispatcher over a copy of variants. fallback may be
// nil, in which case unknown merchants are a configuration error.
func NewDispatcher[T any](kind string, variants map[string]Variant[T], fallback FallbackFactory[T]) *Dispatcher[T] {
	registry := make(map[string]Variant[T], len(variants))
	for name, v := range variants {
		registry[name] = v
	}
	return &Dispatcher[T]{
		kind:     kind,
		variants: registry,
		fallback: fallback,
	}
}

// Resolve selects the variant for merchant by exact name
func (d *Dispatcher[T]) Resolve(merchant string) (Variant[T], error) {
	if v, ok := d.variants[merchant]; ok {
		return v, nil
	}
	if d.fallback == nil {
		return nil, fmt.Errorf("%w: no %s rule registered for merchant %q", domain.ErrConfiguration, d.kind, merchant)
	}
	return d.fallback(merchant)
}

// Dispatch resolves merchant and runs its variant against row
func (d *Dispatcher[T]) Dispatch(merchant string, row domain.Row) (T, bool, error) {
	v, err := d.Resolve(merchant)
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v.Extract(row)
}

// Registered reports whether merchant has a bespoke variant
func (d *Dispatcher[T]) Registered(merchant string) bool {
	_, ok := d.variants[merchant]
	return ok
}

// Names returns the registered variant names in sorted order
func (d *Dispatcher[T]) Names() []string {
	names := make([]string, 0, len(d.variants))
	for name := range d.variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every merchant resolves to a variant. All failures are
// reported together.
func (d *Dispatcher[T]) Validate(merchants []string) error {
	var errs []error
	for _, m := range merchants {
		if _, err := d.Resolve(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
