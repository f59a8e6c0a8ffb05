// Package incremental holds the skip/build decision for a unit. The decision
// is a pure function of the unit's declared version, its recipe fingerprint,
// the remote snapshot and the persisted fingerprint store entry, so the full
// decision table is unit-testable without I/O.
package incremental

import (
	"github.com/megvadulthangya/manjaro-awesome/internal/snapshot"
	"github.com/megvadulthangya/manjaro-awesome/internal/state"
	"github.com/megvadulthangya/manjaro-awesome/internal/version"
)

// Decision is the outcome of change detection for one unit.
type Decision struct {
	Build  bool
	Reason string
}

func skip(reason string) Decision  { return Decision{Build: false, Reason: reason} }
func build(reason string) Decision { return Decision{Build: true, Reason: reason} }

// Decide returns Skip or Build for a unit.
//
// Precedence: an exact published version match is authoritative and always
// skips. Failing that, an unchanged fingerprint skips only when some version
// of the unit is already published; the fingerprint store alone is never
// trusted over the remote state. Anything else builds.
func Decide(name string, current version.Version, fingerprint string, snap snapshot.Snapshot, stored *state.Entry) Decision {
	if snap.Contains(name, current) {
		return skip("version already published")
	}
	if stored != nil && fingerprint != "" && stored.Fingerprint == fingerprint && snap.HasAny(name) {
		return skip("recipe unchanged since last publish")
	}
	if snap.HasAny(name) {
		return build("version or recipe changed")
	}
	return build("not yet published")
}
