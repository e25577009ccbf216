package utils

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// CheckMinimumVersion verifies that the recorder's reported version
// satisfies the configured minimum. An empty minimum disables the check.
func CheckMinimumVersion(got, minimum string) error {
	if minimum == "" {
		return nil
	}

	current, err := semver.NewVersion(got)
	if err != nil {
		return fmt.Errorf("unparseable recorder version %q: %w", got, err)
	}

	constraint, err := semver.NewConstraint(">= " + minimum)
	if err != nil {
		return fmt.Errorf("invalid minimum version %q: %w", minimum, err)
	}

	if !constraint.Check(current) {
		return fmt.Errorf("recorder version %s is older than required %s", got, minimum)
	}
	return nil
}
