package docid

import (
	"reflect"
	"time"
)

// Record is an immutable feed entry describing one document for the
// metadata-and-URL feed.
type Record struct {
	DocId            DocId
	LastModified     time.Time
	HasLastModified  bool
	ResultLink       string
	HasResultLink    bool
	Delete           bool
	CrawlImmediately bool
	CrawlOnce        bool
	Lock             bool
	NoFollow         bool
	Metadata         Metadata
	Acl              Acl
	HasAcl           bool
}

// RecordBuilder accumulates Record fields before producing an immutable
// Record. The zero value is ready to use.
type RecordBuilder struct {
	rec Record
}

// NewRecordBuilder starts building a Record for the given DocId.
func NewRecordBuilder(id DocId) *RecordBuilder {
	return &RecordBuilder{rec: Record{DocId: id, Metadata: NewMetadata()}}
}

func (b *RecordBuilder) SetLastModified(t time.Time) *RecordBuilder {
	b.rec.LastModified = t
	b.rec.HasLastModified = true
	return b
}

func (b *RecordBuilder) SetResultLink(uri string) *RecordBuilder {
	b.rec.ResultLink = uri
	b.rec.HasResultLink = true
	return b
}

func (b *RecordBuilder) SetDelete(v bool) *RecordBuilder {
	b.rec.Delete = v
	return b
}

func (b *RecordBuilder) SetCrawlImmediately(v bool) *RecordBuilder {
	b.rec.CrawlImmediately = v
	return b
}

func (b *RecordBuilder) SetCrawlOnce(v bool) *RecordBuilder {
	b.rec.CrawlOnce = v
	return b
}

func (b *RecordBuilder) SetLock(v bool) *RecordBuilder {
	b.rec.Lock = v
	return b
}

func (b *RecordBuilder) SetNoFollow(v bool) *RecordBuilder {
	b.rec.NoFollow = v
	return b
}

func (b *RecordBuilder) SetMetadata(m Metadata) *RecordBuilder {
	b.rec.Metadata = m
	return b
}

func (b *RecordBuilder) SetAcl(a Acl) *RecordBuilder {
	b.rec.Acl = a
	b.rec.HasAcl = true
	return b
}

func (b *RecordBuilder) Build() Record {
	return b.rec
}

// Equal reports whether two Records carry identical field values.
func (r Record) Equal(other Record) bool {
	if !r.DocId.Equal(other.DocId) {
		return false
	}
	if r.HasLastModified != other.HasLastModified {
		return false
	}
	if r.HasLastModified && !r.LastModified.Equal(other.LastModified) {
		return false
	}
	if r.HasResultLink != other.HasResultLink || r.ResultLink != other.ResultLink {
		return false
	}
	if r.Delete != other.Delete || r.CrawlImmediately != other.CrawlImmediately ||
		r.CrawlOnce != other.CrawlOnce || r.Lock != other.Lock || r.NoFollow != other.NoFollow {
		return false
	}
	if !r.Metadata.Equal(other.Metadata) {
		return false
	}
	if r.HasAcl != other.HasAcl {
		return false
	}
	return !r.HasAcl || reflect.DeepEqual(r.Acl, other.Acl)
}
