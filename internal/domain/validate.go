package domain

import (
	"regexp"
	"strings"
)

// maxSiteIDLen matches the DNS limit on a full name; identifiers are derived
// from hostnames so nothing legitimate is longer.
const maxSiteIDLen = 253

var sitePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9.-]*[a-z0-9])?$`)

// ValidSiteID reports whether id is safe to use as a directory name under
// the sites root and as a socket name. Identifiers flow in from untrusted
// Host headers, so anything that could escape the namespace — path
// separators, traversal dots, NUL bytes, leading dashes — is rejected here
// before any filesystem or socket use.
func ValidSiteID(id string) bool {
	if id == "" || len(id) > maxSiteIDLen {
		return false
	}
	// The pattern allows dots, so consecutive dots need an explicit check.
	if strings.Contains(id, "..") {
		return false
	}
	return sitePattern.MatchString(id)
}
