package plan

// Type is the closed set of plan tiers a tenant can be on.
type Type string

const (
	TypeTrial        Type = "trial"
	TypeStarter      Type = "starter"
	TypeProfessional Type = "professional"
	TypeEnterprise   Type = "enterprise"
)

// Types lists every known tier, cheapest first.
var Types = []Type{TypeTrial, TypeStarter, TypeProfessional, TypeEnterprise}

// ParseType maps a stored string onto a known tier.
// The second result is false for unknown values; callers decide on the fallback.
func ParseType(s string) (Type, bool) {
	t := Type(s)
	return t, t.Valid()
}

// Valid reports whether t is one of the known tiers.
func (t Type) Valid() bool {
	switch t {
	case TypeTrial, TypeStarter, TypeProfessional, TypeEnterprise:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }

// Resource is a countable record kind capped per plan.
type Resource string

const (
	ResourceCustomers Resource = "customers"
	ResourceWorkers   Resource = "workers"
	ResourceProducts  Resource = "products"
	ResourceLocations Resource = "locations"
)

// Resources lists every capped resource.
var Resources = []Resource{ResourceCustomers, ResourceWorkers, ResourceProducts, ResourceLocations}

// ParseResource maps a string onto a known resource kind.
func ParseResource(s string) (Resource, bool) {
	if r := Resource(s); r.Valid() {
		return r, true
	}
	return "", false
}

// Valid reports whether r is one of the capped resources.
func (r Resource) Valid() bool {
	switch r {
	case ResourceCustomers, ResourceWorkers, ResourceProducts, ResourceLocations:
		return true
	}
	return false
}

// Unlimited marks a resource without a cap.
const Unlimited int64 = -1

// Feature is a boolean capability toggled per plan.
type Feature string

const (
	FeatureQueueBasic        Feature = "queue_basic"    // Single service queue
	FeatureQueuePriority     Feature = "queue_priority" // Priority lanes and appointments
	FeatureQueueAdvanced     Feature = "queue_advanced" // Multi-queue routing and forecasting
	FeatureInventory         Feature = "inventory"
	FeaturePaymentProcessing Feature = "payment_processing"
	FeatureAnalytics         Feature = "analytics"
	FeatureMultiLocation     Feature = "multi_location"
	FeatureIntegrations      Feature = "integrations"
	FeatureAPIAccess         Feature = "api_access"
	FeatureWhiteLabel        Feature = "white_label"
)
