package serve

import (
	"testing"

	"github.com/googlegsa/library/docid"
	"github.com/stretchr/testify/assert"
)

func TestPercentEncodePreservesUnreservedCharacters(t *testing.T) {
	assert.Equal(t, "abcXYZ019-_.~", percentEncode("abcXYZ019-_.~"))
}

func TestPercentEncodeEscapesEverythingElse(t *testing.T) {
	assert.Equal(t, "%20%2F%3D", percentEncode(" /="))
}

func TestMetadataHeaderValueEmitsOnePairPerValue(t *testing.T) {
	meta := docid.NewMetadataBuilder().Add("color", "red").Add("color", "blue").Build()
	assert.Equal(t, "color=red,color=blue", metadataHeaderValue(meta))
}

func TestAclHeaderValueIncludesInheritance(t *testing.T) {
	parent := docid.MustNew("parent-doc")
	acl := docid.NewAclBuilder().
		SetPermitUsers(docid.NewUser("alice")).
		SetDenyGroups(docid.NewGroup("contractors")).
		SetInheritFrom(parent).
		SetInheritanceType(docid.ChildOverrides).
		Build()

	value := aclHeaderValue(acl)
	assert.Contains(t, value, "google:aclusers=alice")
	assert.Contains(t, value, "google:acldenygroups=contractors")
	assert.Contains(t, value, "google:aclinheritfrom=")
	assert.Contains(t, value, "google:aclinheritancetype=")
}

func TestAclHeaderValueOmitsAbsentFields(t *testing.T) {
	acl := docid.NewAclBuilder().SetPermitUsers(docid.NewUser("alice")).Build()
	value := aclHeaderValue(acl)
	assert.NotContains(t, value, "google:acldenyusers")
	assert.NotContains(t, value, "google:aclinheritfrom")
}

func TestAnchorHeaderValueHandlesBareAndTextedAnchors(t *testing.T) {
	value := anchorHeaderValue([]Anchor{
		{URL: "http://example.com/a"},
		{Text: "b page", URL: "http://example.com/b"},
	})
	assert.Equal(t, "http%3A%2F%2Fexample.com%2Fa,b%20page=http%3A%2F%2Fexample.com%2Fb", value)
}

func TestRobotsTagValueJoinsOnlySetDirectives(t *testing.T) {
	assert.Equal(t, "noindex, noarchive", robotsTagValue(true, false, true))
	assert.Equal(t, "", robotsTagValue(false, false, false))
}

func TestServeSecurityValue(t *testing.T) {
	assert.Equal(t, "secure", serveSecurityValue(true))
	assert.Equal(t, "public", serveSecurityValue(false))
}
