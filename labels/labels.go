// Package labels defines the provenance labels tugboat stamps onto every
// resource it creates. The session label is what ties a resource to its
// owning test run; the reaper only ever deletes resources carrying it, so
// leaving the label off is an explicit opt-out from cleanup.
package labels

// All keys share the "org.tugboat." prefix to avoid colliding with labels
// set by other tooling.
const (
	Prefix = "org.tugboat."

	// KeyManaged marks a resource as created by this library.
	KeyManaged = Prefix + "managed"

	// KeySessionID carries the owning session's identifier.
	KeySessionID = Prefix + "session-id"

	// KeyReap marks a resource as eligible for reaper cleanup.
	KeyReap = Prefix + "reap"

	ManagedValue = "true"
	ReapValue    = "true"
)

// Build merges caller-supplied labels with the reserved provenance labels.
// Reserved keys always win: a caller can never spoof another session's
// identity through extra labels. Pure data construction, no I/O.
func Build(sessionID string, extra map[string]string) map[string]string {
	merged := make(map[string]string, len(extra)+2)
	for k, v := range extra {
		merged[k] = v
	}
	merged[KeyManaged] = ManagedValue
	merged[KeySessionID] = sessionID
	return merged
}
