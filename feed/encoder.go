// Package feed builds and delivers the XML feeds the framework sends to
// the search appliance: metadata-and-url feeds for document records, group
// membership feeds for ACL principals, and the retrying multipart
// transport both ride over.
package feed

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/googlegsa/library/docid"
)

// FeedType selects the feedtype multipart part sent alongside a payload.
type FeedType string

const (
	// TypeMetadataAndURL marks a document-record feed.
	TypeMetadataAndURL FeedType = "metadata-and-url"
	// TypeIncremental marks an incremental group feed.
	TypeIncremental FeedType = "incremental"
	// TypeFull marks a full group feed.
	TypeFull FeedType = "full"
)

// rfc822 is the date layout the appliance expects for last-modified.
const rfc822 = "Mon, 02 Jan 2006 15:04:05 MST"

type xmlFeed struct {
	XMLName  xml.Name     `xml:"gsafeed"`
	Header   xmlHeader    `xml:"header"`
	Group    xmlGroup     `xml:"group"`
}

type xmlHeader struct {
	Datasource string `xml:"datasource"`
	Feedtype   string `xml:"feedtype"`
}

type xmlGroup struct {
	Records []xmlRecord `xml:"record"`
}

type xmlRecord struct {
	URL              string        `xml:"url,attr"`
	Action           string        `xml:"action,attr,omitempty"`
	LastModified     string        `xml:"last-modified,attr,omitempty"`
	CrawlImmediately boolAttr      `xml:"crawl-immediately,attr,omitempty"`
	CrawlOnce        boolAttr      `xml:"crawl-once,attr,omitempty"`
	Lock             boolAttr      `xml:"lock,attr,omitempty"`
	NoFollow         boolAttr      `xml:"no-follow,attr,omitempty"`
	MimeType         string        `xml:"mimetype,attr,omitempty"`
	Metadata         *xmlMetadata  `xml:"metadata,omitempty"`
	ACL              *xmlACL       `xml:"acl,omitempty"`
}

// boolAttr renders as "" when false so omitempty drops the attribute, and
// "true" when true, matching the appliance's boolean-attribute convention.
type boolAttr bool

func (b boolAttr) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	if !b {
		return xml.Attr{}, nil
	}
	return xml.Attr{Name: name, Value: "true"}, nil
}

type xmlMetadata struct {
	Meta []xmlMeta `xml:"meta"`
}

type xmlMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type xmlACL struct {
	PermitUsers       string `xml:"google:aclusers,attr,omitempty"`
	DenyUsers         string `xml:"google:acldenyusers,attr,omitempty"`
	PermitGroups      string `xml:"google:aclgroups,attr,omitempty"`
	DenyGroups        string `xml:"google:acldenygroups,attr,omitempty"`
	InheritFrom       string `xml:"google:aclinheritfrom,attr,omitempty"`
	InheritanceType   string `xml:"google:aclinheritancetype,attr,omitempty"`
}

// EncodeRecords renders a batch of records as a metadata-and-url feed for
// datasource, each record's URL built from baseURL and its DocId.
func EncodeRecords(datasource, baseURL string, records []docid.Record) ([]byte, error) {
	feed := xmlFeed{
		Header: xmlHeader{Datasource: datasource, Feedtype: string(TypeMetadataAndURL)},
	}
	for _, r := range records {
		feed.Group.Records = append(feed.Group.Records, recordToXML(r, baseURL))
	}
	return marshalFeed(feed)
}

// EncodeAclItems renders a batch of ACL-only items (no content, just a
// permission payload) as a metadata-and-url feed.
func EncodeAclItems(datasource, baseURL string, items []docid.AclItem) ([]byte, error) {
	feed := xmlFeed{
		Header: xmlHeader{Datasource: datasource, Feedtype: string(TypeMetadataAndURL)},
	}
	for _, item := range items {
		feed.Group.Records = append(feed.Group.Records, xmlRecord{
			URL: baseURL + docid.EncodePath(item.DocId),
			ACL: aclToXML(item.Acl),
		})
	}
	return marshalFeed(feed)
}

func recordToXML(r docid.Record, baseURL string) xmlRecord {
	rec := xmlRecord{
		URL:              baseURL + docid.EncodePath(r.DocId),
		CrawlImmediately: boolAttr(r.CrawlImmediately),
		CrawlOnce:        boolAttr(r.CrawlOnce),
		Lock:             boolAttr(r.Lock),
		NoFollow:         boolAttr(r.NoFollow),
	}
	if r.Delete {
		rec.Action = "delete"
	}
	if r.HasLastModified {
		rec.LastModified = r.LastModified.UTC().Format(rfc822)
	}
	if r.Metadata.Len() > 0 {
		md := &xmlMetadata{}
		r.Metadata.ForEach(func(key string, values []string) {
			for _, v := range values {
				md.Meta = append(md.Meta, xmlMeta{Name: key, Content: v})
			}
		})
		rec.Metadata = md
	}
	if r.HasAcl {
		rec.ACL = aclToXML(r.Acl)
	}
	return rec
}

func aclToXML(a docid.Acl) *xmlACL {
	out := &xmlACL{
		PermitUsers:  joinPrincipals(a.PermitUsers),
		DenyUsers:    joinPrincipals(a.DenyUsers),
		PermitGroups: joinPrincipals(a.PermitGroups),
		DenyGroups:   joinPrincipals(a.DenyGroups),
	}
	if a.HasInheritFrom {
		out.InheritFrom = docid.EncodePath(a.InheritFrom)
		out.InheritanceType = a.InheritanceType.String()
	}
	return out
}

func joinPrincipals(principals []docid.Principal) string {
	if len(principals) == 0 {
		return ""
	}
	parts := make([]string, len(principals))
	for i, p := range principals {
		parts[i] = p.Namespace + ":" + p.Name
	}
	return strings.Join(parts, ",")
}

func marshalFeed(feed xmlFeed) ([]byte, error) {
	out, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("feed: encode records: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// Group is one group source's membership: a name plus its member
// principals, used by EncodeGroups.
type Group struct {
	Name    string
	Members []docid.Principal
}

type xmlGroupsFeed struct {
	XMLName     xml.Name          `xml:"xmlgroups"`
	Memberships []xmlMembership   `xml:"membership"`
}

type xmlMembership struct {
	GroupName  string            `xml:"group,attr"`
	Principals []xmlPrincipalRef `xml:"principal"`
}

type xmlPrincipalRef struct {
	Kind            string `xml:"scope,attr"`
	Namespace       string `xml:"namespace,attr"`
	CaseSensitive   bool   `xml:"case-sensitivity-type,attr"`
	Name            string `xml:",chardata"`
}

// EncodeGroups renders a set of groups as an xmlgroups feed.
func EncodeGroups(groups []Group) ([]byte, error) {
	feed := xmlGroupsFeed{}
	for _, g := range groups {
		m := xmlMembership{GroupName: g.Name}
		for _, p := range g.Members {
			kind := "user"
			if p.IsGroup() {
				kind = "group"
			}
			m.Principals = append(m.Principals, xmlPrincipalRef{
				Kind:          kind,
				Namespace:     p.Namespace,
				CaseSensitive: true,
				Name:          p.Name,
			})
		}
		feed.Memberships = append(feed.Memberships, m)
	}
	out, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("feed: encode groups: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
