package plan

import "errors"

var (
	ErrFailedToLoadPlans  = errors.New("plan: failed to load plans")
	ErrInvalidCatalog     = errors.New("plan: invalid catalog")
	ErrUnknownPlanType    = errors.New("plan: unknown plan type")
	ErrUnknownResource    = errors.New("plan: unknown resource")
	ErrMissingPlan        = errors.New("plan: catalog is missing a plan tier")
	ErrInvalidLimitValue  = errors.New("plan: invalid limit value")
	ErrFallbackPlanAbsent = errors.New("plan: fallback plan is not in the catalog")
)
