package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Source loads the plan table a Catalog serves.
type Source interface {
	Load(ctx context.Context) (map[Type]Plan, error)
}

// Catalog is a read-only lookup from plan tier to caps and features.
// It is safe for concurrent use once constructed.
type Catalog struct {
	plans    map[Type]Plan
	fallback Type
	logger   *slog.Logger
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithLogger sets the logger used to report unknown plan types.
func WithLogger(l *slog.Logger) CatalogOption {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFallback overrides the tier served for unknown plan types (default starter).
func WithFallback(t Type) CatalogOption {
	return func(c *Catalog) { c.fallback = t }
}

// NewCatalog loads plans from src and validates that every tier is present.
func NewCatalog(ctx context.Context, src Source, opts ...CatalogOption) (*Catalog, error) {
	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	c := &Catalog{
		plans:    make(map[Type]Plan, len(plans)),
		fallback: TypeStarter,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	for t, p := range plans {
		p = p.clone()
		p.Type = t
		c.plans[t] = p
	}

	if err := validate(c.plans); err != nil {
		return nil, err
	}
	if _, ok := c.plans[c.fallback]; !ok {
		return nil, ErrFallbackPlanAbsent
	}

	return c, nil
}

// NewDefaultCatalog returns a Catalog over the built-in plan table.
func NewDefaultCatalog(opts ...CatalogOption) *Catalog {
	c, err := NewCatalog(context.Background(), NewMemorySource(DefaultPlans()), opts...)
	if err != nil {
		panic(fmt.Sprintf("plan: built-in catalog is invalid: %v", err))
	}
	return c
}

// LimitsFor returns the plan for t. Unknown tiers resolve to the fallback
// tier so a corrupt value never grants more than the most restrictive plan.
func (c *Catalog) LimitsFor(t Type) Plan {
	if p, ok := c.plans[t]; ok {
		return p.clone()
	}
	c.logger.Warn("unknown plan type, using fallback",
		slog.String("plan_type", string(t)),
		slog.String("fallback", string(c.fallback)),
	)
	return c.plans[c.fallback].clone()
}

// HasFeature reports whether tier t enables f.
func (c *Catalog) HasFeature(t Type, f Feature) bool {
	return c.LimitsFor(t).HasFeature(f)
}

// IsWithinLimit reports whether a tenant on tier t holding count records of
// res may add one more.
func (c *Catalog) IsWithinLimit(t Type, res Resource, count int64) bool {
	return c.LimitsFor(t).IsWithinLimit(res, count)
}

// ComparePlans returns the capability delta of moving from current to target.
func (c *Catalog) ComparePlans(current, target Type) *Comparison {
	return Compare(c.LimitsFor(current), c.LimitsFor(target))
}

func validate(plans map[Type]Plan) error {
	for _, t := range Types {
		p, ok := plans[t]
		if !ok {
			return errors.Join(ErrInvalidCatalog, fmt.Errorf("%w: %s", ErrMissingPlan, t))
		}
		for _, res := range Resources {
			limit, ok := p.Limits[res]
			if !ok {
				return errors.Join(ErrInvalidCatalog, fmt.Errorf("plan %s has no %s limit", t, res))
			}
			if limit < Unlimited {
				return errors.Join(ErrInvalidCatalog, fmt.Errorf("%w: plan %s %s=%d", ErrInvalidLimitValue, t, res, limit))
			}
		}
	}
	for t := range plans {
		if !t.Valid() {
			return errors.Join(ErrInvalidCatalog, fmt.Errorf("%w: %q", ErrUnknownPlanType, t))
		}
	}
	return nil
}
