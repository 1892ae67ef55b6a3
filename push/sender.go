// Package push implements the feed sender, its asynchronous batching
// front-end, and the full/incremental drivers that call into an
// adaptor's enumeration methods on a schedule.
package push

import (
	"context"
	"fmt"

	"github.com/googlegsa/library/adaptor"
	"github.com/googlegsa/library/docid"
	"github.com/googlegsa/library/feed"
	"github.com/googlegsa/library/journal"
)

// Sender batches, encodes, and transports document records and ACL-only
// "named resource" items to the appliance, recording outcomes in a
// Journal and optionally archiving raw payloads.
type Sender struct {
	Datasource          string
	BaseURL             string
	MaxBatchSize        int
	Transport           *feed.Transport
	Policy              feed.RetryPolicy
	Journal             *journal.Journal
	Archiver            feed.Archiver
	MarkAllDocsAsPublic bool
}

// NewSender builds a Sender with sensible defaults (the framework's
// default retry policy, no archiver).
func NewSender(datasource, baseURL string, maxBatchSize int, transport *feed.Transport, j *journal.Journal) *Sender {
	return &Sender{
		Datasource:   datasource,
		BaseURL:      baseURL,
		MaxBatchSize: maxBatchSize,
		Transport:    transport,
		Policy:       feed.DefaultRetryPolicy(),
		Journal:      j,
		Archiver:     feed.NopArchiver{},
	}
}

func (s *Sender) archiver() feed.Archiver {
	if s.Archiver != nil {
		return s.Archiver
	}
	return feed.NopArchiver{}
}

// PushRecords sends records in order, batching up to MaxBatchSize at a
// time. On the first batch that fails permanently (retries exhausted or
// a fatal transport error), it returns that batch's first item as the
// failure marker and does not attempt subsequent batches. A context
// cancellation during a later batch is reported the same way: the first
// item of the unsent batch, plus ctx.Err(). Empty input returns success.
func (s *Sender) PushRecords(ctx context.Context, kind journal.PushKind, records []docid.Record) (*docid.DocId, error) {
	for start := 0; start < len(records); start += s.MaxBatchSize {
		end := start + s.MaxBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		payload, err := feed.EncodeRecords(s.Datasource, s.BaseURL, batch)
		if err != nil {
			return &batch[0].DocId, fmt.Errorf("push: encode batch: %w", err)
		}

		sendErr := feed.Run(ctx, s.Policy, func() error {
			return s.Transport.Send(ctx, s.Datasource, feed.TypeMetadataAndURL, payload)
		})
		_ = s.archiver().Archive(ctx, s.Datasource, feed.TypeMetadataAndURL, payload, sendErr)

		if sendErr != nil {
			s.Journal.RecordBatchFailure(kind)
			id := batch[0].DocId
			return &id, sendErr
		}

		for _, rec := range batch {
			s.Journal.RecordIdPushed(rec.DocId.ID())
		}
	}
	return nil, nil
}

// PushNamedResources sends a batch of ACL-only items (no content, just
// permissions). If MarkAllDocsAsPublic is set, ACL-bearing pushes are a
// no-op that returns success immediately, since the appliance is
// configured to treat every document as public.
func (s *Sender) PushNamedResources(ctx context.Context, kind journal.PushKind, items []docid.AclItem) (*docid.DocId, error) {
	if s.MarkAllDocsAsPublic {
		return nil, nil
	}

	for start := 0; start < len(items); start += s.MaxBatchSize {
		end := start + s.MaxBatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		payload, err := feed.EncodeAclItems(s.Datasource, s.BaseURL, batch)
		if err != nil {
			return &batch[0].DocId, fmt.Errorf("push: encode acl batch: %w", err)
		}

		sendErr := feed.Run(ctx, s.Policy, func() error {
			return s.Transport.Send(ctx, s.Datasource, feed.TypeMetadataAndURL, payload)
		})
		_ = s.archiver().Archive(ctx, s.Datasource, feed.TypeMetadataAndURL, payload, sendErr)

		if sendErr != nil {
			s.Journal.RecordBatchFailure(kind)
			id := batch[0].DocId
			return &id, sendErr
		}

		for _, item := range batch {
			s.Journal.RecordIdPushed(item.DocId.ID())
		}
	}
	return nil, nil
}

// StreamPusher adapts Sender's batch-oriented PushRecords to the
// adaptor.IdPusher streaming interface GetDocIds/GetModifiedDocIds drive:
// it accumulates records and flushes a batch at a time, remembering the
// first failure marker across flushes.
type StreamPusher struct {
	sender *Sender
	kind   journal.PushKind
	batch  []docid.Record
	first  *docid.DocId
}

// NewStreamPusher returns an adaptor.IdPusher that batches into sender,
// classifying failures under kind.
func (s *Sender) NewStreamPusher(kind journal.PushKind) *StreamPusher {
	return &StreamPusher{sender: s, kind: kind}
}

func (p *StreamPusher) PushDocId(ctx context.Context, id docid.DocId) error {
	return p.PushRecord(ctx, docid.NewRecordBuilder(id).Build())
}

func (p *StreamPusher) PushRecord(ctx context.Context, rec docid.Record) error {
	if p.first != nil {
		return fmt.Errorf("push: stream pusher already failed at %s", p.first.ID())
	}
	p.batch = append(p.batch, rec)
	if len(p.batch) >= p.sender.MaxBatchSize {
		return p.flush(ctx)
	}
	return nil
}

func (p *StreamPusher) flush(ctx context.Context) error {
	if len(p.batch) == 0 {
		return nil
	}
	batch := p.batch
	p.batch = nil
	failed, err := p.sender.PushRecords(ctx, p.kind, batch)
	if err != nil {
		p.first = failed
		return err
	}
	return nil
}

// Finish flushes any remaining buffered records. Call after the
// adaptor's enumeration method returns successfully.
func (p *StreamPusher) Finish(ctx context.Context) error {
	return p.flush(ctx)
}

// FirstFailed returns the first failure marker recorded across all
// flushes, or nil if every flush succeeded.
func (p *StreamPusher) FirstFailed() *docid.DocId {
	return p.first
}
