package differ

// Option configures a Differ.
type Option func(*differ)

// WithIgnoredFields skips the named fields when comparing queries and
// visualizations. Field names are the declared file keys, such as
// "description" or "dashboardPlacements".
func WithIgnoredFields(fields ...string) Option {
	return func(d *differ) {
		for _, field := range fields {
			d.ignoreFields[field] = true
		}
	}
}

// WithRemoteOptions compares every options key, including keys only the
// existing side carries. By default such keys are ignored because a push
// preserves them.
func WithRemoteOptions(enabled bool) Option {
	return func(d *differ) {
		d.remoteOptions = enabled
	}
}
