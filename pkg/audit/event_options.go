package audit

// WithResource names the entity the event is about, e.g. "subscription" and its id.
func WithResource(resource, id string) EventOption {
	return func(e *Event) {
		e.Resource = resource
		e.ResourceID = id
	}
}

// WithTenant sets the tenant explicitly, overriding the context extractor.
func WithTenant(tenantID string) EventOption {
	return func(e *Event) {
		e.TenantID = tenantID
	}
}

// WithMetadata adds one metadata entry.
func WithMetadata(key string, value any) EventOption {
	return WithFields(map[string]any{key: value})
}

// WithFields merges fields into the event metadata; later keys overwrite
// earlier ones.
func WithFields(fields map[string]any) EventOption {
	return func(e *Event) {
		if len(fields) == 0 {
			return
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]any, len(fields))
		}
		for k, v := range fields {
			e.Metadata[k] = v
		}
	}
}

// WithResult overrides the result, e.g. ResultFailure for a denied access check.
func WithResult(result Result) EventOption {
	return func(e *Event) {
		e.Result = result
	}
}
