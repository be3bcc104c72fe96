package manifest

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/igr88/archetect/internal/apperr"
)

// Requirements constrains the tool versions an archetype renders with.
type Requirements struct {
	Archetect string `yaml:"archetect,omitempty" json:"archetect,omitempty"`
}

// Check verifies that running satisfies the archetect constraint. A running
// version that is not semver, such as a development build, satisfies every
// constraint.
func (r *Requirements) Check(running string) error {
	if r == nil || strings.TrimSpace(r.Archetect) == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(r.Archetect)
	if err != nil {
		return apperr.Errorf(apperr.KindRequirements, "check requirements", r.Archetect, "invalid version constraint: %v", err)
	}
	v, err := parseSemver(running)
	if err != nil {
		return nil
	}
	if ok, errs := constraint.Validate(v); !ok {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return apperr.Errorf(apperr.KindRequirements, "check requirements", r.Archetect,
			"archetect %s does not satisfy %s: %s", v, r.Archetect, strings.Join(msgs, "; "))
	}
	return nil
}

// CheckRequirements verifies the archetype's requirements against running.
func (a *Archetype) CheckRequirements(running string) error {
	if err := a.Requires.Check(running); err != nil {
		return fmt.Errorf("archetype %s: %w", a.Name, err)
	}
	return nil
}

// parseSemver strips a leading "v" and parses the version string.
func parseSemver(version string) (*semver.Version, error) {
	version = strings.TrimPrefix(version, "v")
	return semver.NewVersion(version)
}
