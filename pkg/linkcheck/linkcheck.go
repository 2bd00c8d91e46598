// Package linkcheck decides whether an incoming string is a supported media link.
package linkcheck

import "strings"

// supportedFragments lists the domain fragments accepted by the extraction
// backend configuration this bot ships with. Matching is a deliberate
// substring test: a fragment anywhere in the input counts, which trades a few
// false positives for never rejecting an odd-but-valid share link.
var supportedFragments = []string{
	"youtube.com",
	"youtu.be",
	"facebook.com",
	"fb.watch",
	"instagram.com",
	"twitter.com",
	"x.com",
}

// Supported reports whether the input contains a supported domain fragment.
//
// It never fails: malformed or empty input is simply unsupported.
func Supported(url string) bool {
	lowered := strings.ToLower(url)
	for _, fragment := range supportedFragments {
		if strings.Contains(lowered, fragment) {
			return true
		}
	}

	return false
}

// Domains returns a copy of the supported domain fragment list.
func Domains() []string {
	domains := make([]string, len(supportedFragments))
	copy(domains, supportedFragments)
	return domains
}
