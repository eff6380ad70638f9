// Package metrics owns the Prometheus collectors the services export. Every
// recorder is safe to use when nil or when built with a nil registerer.
package metrics

const namespace = "bazaar"

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
