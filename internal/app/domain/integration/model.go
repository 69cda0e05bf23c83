// Package integration defines the read-only view of external protocol
// collaborators. The platform treats every integration as an opaque source of
// already-validated statistics.
package integration

import "time"

// Stats is one collaborator's network summary. Values carries the
// provider-specific numeric and string figures. Stale marks a section served
// from the last known good snapshot after a fetch failure.
type Stats struct {
	Source      string
	CollectedAt time.Time
	Values      map[string]any
	Stale       bool
}
