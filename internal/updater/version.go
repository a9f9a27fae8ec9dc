package updater

import (
	"strconv"
	"strings"
)

// IsNewer reports whether latest is a strictly newer semantic version
// than current. Versions are MAJOR.MINOR.PATCH; missing components
// are treated as 0 and only the first three are compared. Any
// non-numeric component makes the candidate not newer, so a garbled
// metadata value can never trigger an update.
func IsNewer(latest, current string) bool {
	lp, ok := parseVersion(latest)
	if !ok {
		return false
	}
	cp, ok := parseVersion(current)
	if !ok {
		return false
	}
	for i := 0; i < 3; i++ {
		if lp[i] > cp[i] {
			return true
		}
		if lp[i] < cp[i] {
			return false
		}
	}
	return false
}

func parseVersion(v string) ([3]int, bool) {
	var parts [3]int
	fields := strings.Split(v, ".")
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return parts, false
		}
		if i < 3 {
			parts[i] = n
		}
	}
	return parts, true
}
