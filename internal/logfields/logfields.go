package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyUnit       = "unit"
	KeyOrigin     = "origin"
	KeyVersion    = "version"
	KeyStage      = "stage"
	KeyDecision   = "decision"
	KeyArtifact   = "artifact"
	KeyRemoteDir  = "remote_dir"
	KeyDurationMS = "duration_ms"
	KeyAttempt    = "attempt"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Unit(name string) slog.Attr      { return slog.String(KeyUnit, name) }
func Origin(o string) slog.Attr       { return slog.String(KeyOrigin, o) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Decision(d string) slog.Attr     { return slog.String(KeyDecision, d) }
func Artifact(f string) slog.Attr     { return slog.String(KeyArtifact, f) }
func RemoteDir(d string) slog.Attr    { return slog.String(KeyRemoteDir, d) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
