package store

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// FormatVersion is written into every stored run.
const FormatVersion = "v1.0.0"

// IsCompatibleVersion checks if a stored run can be read by this build.
// Compatibility rules:
// - Major version must match exactly.
// - Minor and patch versions can differ.
func IsCompatibleVersion(storedVersion, currentVersion string) (bool, error) {
	if !semver.IsValid(storedVersion) {
		return false, fmt.Errorf("invalid stored version: %q", storedVersion)
	}
	if !semver.IsValid(currentVersion) {
		return false, fmt.Errorf("invalid current version: %q", currentVersion)
	}

	return semver.Major(storedVersion) == semver.Major(currentVersion), nil
}

// compatibilityError explains why a stored run cannot be read by this build.
func compatibilityError(runID, storedVersion string) error {
	return fmt.Errorf("%w: run %s was written as %s, this build reads %s.x.x",
		ErrIncompatibleVersion, runID, storedVersion, semver.Major(FormatVersion))
}
