// Package groups implements the group-membership feed: incremental
// append/update batching shared with the document push sender, and a
// double-buffered rotating-alias protocol for full replacement, gated
// by the target appliance's reported version.
package groups

import (
	"fmt"
	"strconv"
	"strings"
)

// ApplianceVersion is a dotted major.minor appliance version, used to
// gate which parts of the group feed protocol are supported.
type ApplianceVersion struct {
	Major int
	Minor int
}

// ParseApplianceVersion parses a "major.minor[.patch...]" string,
// ignoring any components after the minor version.
func ParseApplianceVersion(s string) (ApplianceVersion, error) {
	parts := strings.SplitN(s, ".", 3)
	if len(parts) < 2 {
		return ApplianceVersion{}, fmt.Errorf("groups: invalid appliance version %q", s)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return ApplianceVersion{}, fmt.Errorf("groups: invalid appliance version %q: %w", s, err)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return ApplianceVersion{}, fmt.Errorf("groups: invalid appliance version %q: %w", s, err)
	}
	return ApplianceVersion{Major: major, Minor: minor}, nil
}

// AtLeast reports whether v is greater than or equal to major.minor.
func (v ApplianceVersion) AtLeast(major, minor int) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

// String renders the version as "major.minor".
func (v ApplianceVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

const (
	minSupportedMajor, minSupportedMinor     = 7, 2
	minFullModeMajor, minFullModeMinor       = 7, 4
)

// supportsGroups reports whether v is new enough to accept any group feed.
func (v ApplianceVersion) supportsGroups() bool {
	return v.AtLeast(minSupportedMajor, minSupportedMinor)
}

// supportsFullMode reports whether v is new enough for the rotating-alias
// full-replacement protocol; older appliances are demoted to incremental.
func (v ApplianceVersion) supportsFullMode() bool {
	return v.AtLeast(minFullModeMajor, minFullModeMinor)
}
