package builder

import (
	"github.com/megvadulthangya/manjaro-awesome/internal/recipe"
	"github.com/megvadulthangya/manjaro-awesome/internal/version"
)

// Reason classifies why a unit's build failed.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonAcquire     Reason = "acquire"
	ReasonParse       Reason = "parse"
	ReasonBuild       Reason = "build"
	ReasonTimeout     Reason = "timeout"
	ReasonNoArtifacts Reason = "no-artifacts"
)

// Bundle is the output of one successful build: the artifact files plus the
// version and fingerprint that produced them.
type Bundle struct {
	Unit        recipe.Unit
	Version     version.Version
	Fingerprint string
	Files       []string
}

// Result is the outcome of one unit's build.
type Result struct {
	Unit   recipe.Unit
	Bundle *Bundle
	Reason Reason
	Err    error
}

// Failed reports whether the build did not produce a bundle.
func (r Result) Failed() bool { return r.Bundle == nil }

func failed(unit recipe.Unit, reason Reason, err error) Result {
	return Result{Unit: unit, Reason: reason, Err: err}
}
