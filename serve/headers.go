package serve

import (
	"strings"

	"github.com/googlegsa/library/docid"
)

const (
	headerExternalMetadata = "X-Gsa-External-Metadata"
	headerExternalAnchor   = "X-Gsa-External-Anchor"
	headerRobotsTag        = "X-Robots-Tag"
	headerServeSecurity    = "X-Gsa-Serve-Security"
)

// percentEncode escapes every byte of s except A-Za-z0-9-_.~, matching
// the appliance's external-header encoding (narrower than net/url's
// query escaping, which additionally leaves a handful of other
// characters unescaped).
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigit(c >> 4))
		b.WriteByte(hexDigit(c & 0x0f))
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.' || c == '~':
		return true
	default:
		return false
	}
}

func hexDigit(n byte) byte {
	const digits = "0123456789ABCDEF"
	return digits[n]
}

// metadataHeaderValue renders metadata as comma-separated percent-encoded
// "key=value" pairs, one per value (a multi-valued key appears once per
// value), for the first X-Gsa-External-Metadata header.
func metadataHeaderValue(m docid.Metadata) string {
	var pairs []string
	m.ForEach(func(key string, values []string) {
		for _, v := range values {
			pairs = append(pairs, percentEncode(key)+"="+percentEncode(v))
		}
	})
	return strings.Join(pairs, ",")
}

// aclHeaderValue renders acl using the reserved google:acl* keys, for the
// second X-Gsa-External-Metadata header.
func aclHeaderValue(acl docid.Acl) string {
	var pairs []string
	add := func(key string, principals []docid.Principal) {
		if len(principals) == 0 {
			return
		}
		names := make([]string, len(principals))
		for i, p := range principals {
			names[i] = p.Name
		}
		pairs = append(pairs, percentEncode(key)+"="+percentEncode(strings.Join(names, ",")))
	}
	add("google:aclusers", acl.PermitUsers)
	add("google:acldenyusers", acl.DenyUsers)
	add("google:aclgroups", acl.PermitGroups)
	add("google:acldenygroups", acl.DenyGroups)
	if acl.HasInheritFrom {
		pairs = append(pairs, "google:aclinheritfrom="+percentEncode(docid.EncodePath(acl.InheritFrom)))
		pairs = append(pairs, "google:aclinheritancetype="+percentEncode(acl.InheritanceType.String()))
	}
	return strings.Join(pairs, ",")
}

// Anchor is one extra outbound link an adaptor attaches to a response.
type Anchor struct {
	Text string
	URL  string
}

func anchorHeaderValue(anchors []Anchor) string {
	var parts []string
	for _, a := range anchors {
		if a.Text == "" {
			parts = append(parts, percentEncode(a.URL))
			continue
		}
		parts = append(parts, percentEncode(a.Text)+"="+percentEncode(a.URL))
	}
	return strings.Join(parts, ",")
}

func robotsTagValue(noIndex, noFollow, noArchive bool) string {
	var parts []string
	if noIndex {
		parts = append(parts, "noindex")
	}
	if noFollow {
		parts = append(parts, "nofollow")
	}
	if noArchive {
		parts = append(parts, "noarchive")
	}
	return strings.Join(parts, ", ")
}

func serveSecurityValue(secure bool) string {
	if secure {
		return "secure"
	}
	return "public"
}
