package checks

import (
	"fmt"

	"github.com/dih-project/wishonia/internal/apperr"
)

// All selects every registered check.
const All = "all"

// Registry holds checks in registration order.
type Registry struct {
	checks []Check
	byName map[string]int
	fields map[string]string
}

// NewRegistry returns a registry holding cs, or the first registration error.
func NewRegistry(cs ...Check) (*Registry, error) {
	r := &Registry{byName: map[string]int{}, fields: map[string]string{}}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds c. Names and hash fields must both be unique: two checks
// sharing a field would mark each other current.
func (r *Registry) Register(c Check) error {
	if c.Name == "" || c.Name == All {
		return fmt.Errorf("checks: invalid name %q", c.Name)
	}
	if c.Func == nil {
		return fmt.Errorf("checks: %s has no function", c.Name)
	}
	if c.HashField == "" {
		c.HashField = HashFieldFor(c.Name)
	}
	if _, ok := r.byName[c.Name]; ok {
		return fmt.Errorf("checks: %s: %w", c.Name, apperr.ErrAlreadyExists)
	}
	if owner, ok := r.fields[c.HashField]; ok {
		return fmt.Errorf("checks: %s: hash field %s already owned by %s: %w", c.Name, c.HashField, owner, apperr.ErrConflict)
	}
	r.byName[c.Name] = len(r.checks)
	r.fields[c.HashField] = c.Name
	r.checks = append(r.checks, c)
	return nil
}

// Get returns the named check.
func (r *Registry) Get(name string) (Check, error) {
	i, ok := r.byName[name]
	if !ok {
		return Check{}, fmt.Errorf("checks: unknown check %q: %w", name, apperr.ErrNotFound)
	}
	return r.checks[i], nil
}

// Names lists check names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.checks))
	for i, c := range r.checks {
		out[i] = c.Name
	}
	return out
}

// All returns every check in registration order.
func (r *Registry) All() []Check {
	return append([]Check(nil), r.checks...)
}

// Resolve turns a CLI selector ("all" or a name) into checks.
func (r *Registry) Resolve(selector string) ([]Check, error) {
	if selector == All {
		return r.All(), nil
	}
	c, err := r.Get(selector)
	if err != nil {
		return nil, err
	}
	return []Check{c}, nil
}
