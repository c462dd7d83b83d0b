package manifest

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/chenyanchen/modreg"
	"github.com/chenyanchen/modreg/internal/logging"
)

var (
	ErrUnknownModule = errors.New("unknown module name")
	ErrUnknownPolicy = errors.New("unknown policy name")
)

// Step is one resolved manifest entry.
type Step struct {
	Name   string
	Type   reflect.Type
	Policy modreg.Policy
}

// Plan resolves every name in m against c without touching a registry.
func (m *Manifest) Plan(c *Catalog) (capabilities []reflect.Type, steps []Step, err error) {
	for _, name := range m.Capabilities {
		t, ok := c.Lookup(name)
		if !ok {
			return nil, nil, fmt.Errorf("capability %q: %w", name, ErrUnknownModule)
		}
		if t.Kind() != reflect.Interface {
			return nil, nil, fmt.Errorf("capability %q: %s is not an interface", name, t)
		}
		capabilities = append(capabilities, t)
	}

	for i, e := range m.Modules {
		t, ok := c.Lookup(e.Name)
		if !ok {
			return nil, nil, fmt.Errorf("module #%d %q: %w", i, e.Name, ErrUnknownModule)
		}
		p, err := m.policyFor(e)
		if err != nil {
			return nil, nil, fmt.Errorf("module #%d %q: %w", i, e.Name, err)
		}
		steps = append(steps, Step{Name: e.Name, Type: t, Policy: p})
	}
	return capabilities, steps, nil
}

// Apply declares the manifest's capabilities and registers its modules in
// order. Every name is resolved before the first registration.
func (m *Manifest) Apply(ctx context.Context, r *modreg.Registry, c *Catalog) error {
	logger := logging.GetLogger("manifest")
	defer logging.LogOperationStart(logger, "apply manifest")()

	capabilities, steps, err := m.Plan(c)
	if err != nil {
		return fmt.Errorf("apply manifest: %w", err)
	}
	if len(capabilities) > 0 {
		if err := r.Declare(ctx, capabilities...); err != nil {
			return fmt.Errorf("apply manifest: %w", err)
		}
	}
	for _, s := range steps {
		if err := r.RegisterType(ctx, s.Type, s.Policy); err != nil {
			return fmt.Errorf("apply manifest: register %s: %w", s.Name, err)
		}
		logger.Info().Str("name", s.Name).Str("type", s.Type.String()).Msg("Manifest module registered")
	}
	return nil
}

func (m *Manifest) policyFor(e Entry) (modreg.Policy, error) {
	resolver, err := resolverFor(firstNonEmpty(e.Resolver, m.Defaults.Resolver, ResolverAuto))
	if err != nil {
		return modreg.Policy{}, err
	}
	duplicates, err := duplicatesFor(firstNonEmpty(e.Duplicates, m.Defaults.Duplicates, DuplicatesStrict))
	if err != nil {
		return modreg.Policy{}, err
	}
	return modreg.NewPolicy(duplicates, resolver), nil
}

func resolverFor(name string) (modreg.DependencyResolver, error) {
	switch name {
	case ResolverAuto:
		return modreg.AutoRegister, nil
	case ResolverFailFast:
		return modreg.FailFast, nil
	default:
		return nil, fmt.Errorf("resolver %q: %w", name, ErrUnknownPolicy)
	}
}

func duplicatesFor(name string) (modreg.DuplicateFinder, error) {
	switch name {
	case DuplicatesStrict:
		return modreg.StrictByType, nil
	case DuplicatesPermissive:
		return modreg.PermissiveDirect, nil
	default:
		return nil, fmt.Errorf("duplicates %q: %w", name, ErrUnknownPolicy)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
