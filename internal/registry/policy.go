package registry

import (
	"fmt"
	"strings"

	"github.com/usepat/SW-soniccontrol/internal/ir"
)

// Policy picks the version to use for a requested version from the versions
// available for a device, sorted ascending. It reports false when none fits.
type Policy func(requested ir.Version, available []ir.Version) (ir.Version, bool)

// ExactMatch accepts only the requested version.
func ExactMatch(requested ir.Version, available []ir.Version) (ir.Version, bool) {
	for _, v := range available {
		if v == requested {
			return v, true
		}
	}
	return ir.Version{}, false
}

// SameMajorAtMost picks the newest available version that shares the
// requested major version and is not newer than the request.
func SameMajorAtMost(requested ir.Version, available []ir.Version) (ir.Version, bool) {
	var best ir.Version
	found := false
	for _, v := range available {
		if v.Major != requested.Major || v.Compare(requested) > 0 {
			continue
		}
		if !found || v.Compare(best) > 0 {
			best, found = v, true
		}
	}
	return best, found
}

// ParsePolicy returns the policy named "exact" or "same-major".
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(name) {
	case "", "exact":
		return ExactMatch, nil
	case "same-major":
		return SameMajorAtMost, nil
	default:
		return nil, fmt.Errorf("unknown lookup policy %q (want exact or same-major)", name)
	}
}
