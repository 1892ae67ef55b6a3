package groups

import (
	"context"
	"fmt"

	"github.com/googlegsa/library/adaptor"
	"github.com/googlegsa/library/common"
	"github.com/googlegsa/library/docid"
	"github.com/googlegsa/library/feed"
	"github.com/googlegsa/library/journal"
	"github.com/googlegsa/library/push"
)

// Mode selects whether a group push replaces the whole corpus (rotating
// through the two full-mode aliases) or only appends/updates.
type Mode int

const (
	ModeIncremental Mode = iota
	ModeFull
)

// Driver pushes group membership, reusing the same batch-encode-retry
// transport as the document sender (C5) but encoding memberships with
// feed.EncodeGroups instead of feed.EncodeRecords.
type Driver struct {
	Datasource   string
	MaxBatchSize int
	Transport    *feed.Transport
	Policy       feed.RetryPolicy
	Journal      *journal.Journal
	Archiver     feed.Archiver
	Version      ApplianceVersion

	aliases *AliasTracker
	tracker *push.RunTracker
	logger  *common.ContextLogger
}

// NewDriver builds a group-push driver targeting an appliance reporting
// the given version string ("major.minor[...]").
func NewDriver(datasource string, maxBatchSize int, transport *feed.Transport, j *journal.Journal, version string) (*Driver, error) {
	v, err := ParseApplianceVersion(version)
	if err != nil {
		return nil, err
	}
	return &Driver{
		Datasource:   datasource,
		MaxBatchSize: maxBatchSize,
		Transport:    transport,
		Policy:       feed.DefaultRetryPolicy(),
		Journal:      j,
		Archiver:     feed.NopArchiver{},
		Version:      v,
		aliases:      NewAliasTracker(),
		tracker:      push.NewRunTracker(),
		logger:       common.ServiceLogger("groups.pusher"),
	}, nil
}

func (d *Driver) archiver() feed.Archiver {
	if d.Archiver != nil {
		return d.Archiver
	}
	return feed.NopArchiver{}
}

// groupCollector buffers groups pushed by the adaptor and flushes batches
// to a single feed source/alias as an incremental feed.
type groupCollector struct {
	d       *Driver
	source  string
	kind    journal.PushKind
	batch   []feed.Group
	pushed  int
	first   string
	failed  bool
}

func (c *groupCollector) PushGroup(ctx context.Context, name string, members []docid.Principal) error {
	if c.failed {
		return fmt.Errorf("groups: collector already failed at %s", c.first)
	}
	c.batch = append(c.batch, feed.Group{Name: name, Members: members})
	if len(c.batch) >= c.d.MaxBatchSize {
		return c.flush(ctx)
	}
	return nil
}

func (c *groupCollector) flush(ctx context.Context) error {
	if len(c.batch) == 0 {
		return nil
	}
	batch := c.batch
	c.batch = nil

	payload, err := feed.EncodeGroups(batch)
	if err != nil {
		c.failed = true
		if c.first == "" {
			c.first = batch[0].Name
		}
		return fmt.Errorf("groups: encode batch: %w", err)
	}

	sendErr := feed.Run(ctx, c.d.Policy, func() error {
		return c.d.Transport.Send(ctx, c.source, feed.TypeIncremental, payload)
	})
	_ = c.d.archiver().Archive(ctx, c.source, feed.TypeIncremental, payload, sendErr)

	if sendErr != nil {
		c.d.Journal.RecordBatchFailure(c.kind)
		c.failed = true
		if c.first == "" {
			c.first = batch[0].Name
		}
		return sendErr
	}

	for _, g := range batch {
		c.d.Journal.RecordIdPushed(c.source + ":" + g.Name)
	}
	c.pushed += len(batch)
	return nil
}

func (c *groupCollector) finish(ctx context.Context) error {
	return c.flush(ctx)
}

// Run enumerates a.GetGroups and delivers it per mode. Below appliance
// version 7.2, groups are unsupported: enumeration pulls at most one
// group and the call fails immediately, marking that group as the
// failure. Below 7.4, ModeFull is silently demoted to ModeIncremental.
func (d *Driver) Run(ctx context.Context, a adaptor.GroupAdaptor, mode Mode) error {
	if !d.Version.supportsGroups() {
		return d.runUnsupported(ctx, a)
	}

	if mode == ModeFull && !d.Version.supportsFullMode() {
		d.logger.WithField("appliance_version", d.Version.String()).
			Warn("appliance predates full group-mode support, demoting to incremental")
		mode = ModeIncremental
	}

	if err := d.tracker.Start(); err != nil {
		return err
	}
	d.Journal.RecordPushStarted(journal.KindGroup)

	var err error
	if mode == ModeFull {
		err = d.runFull(ctx, a)
	} else {
		err = d.runIncremental(ctx, a)
	}

	switch {
	case err == nil:
		d.tracker.Finish(push.StateSuccess)
		d.Journal.RecordPushFinished(journal.KindGroup, journal.StatusSuccess)
	case ctx.Err() != nil:
		d.tracker.Finish(push.StateInterrupted)
		d.Journal.RecordPushFinished(journal.KindGroup, journal.StatusInterrupted)
	default:
		d.tracker.Finish(push.StateFailed)
		d.Journal.RecordPushFinished(journal.KindGroup, journal.StatusFailed)
	}
	return err
}

// runUnsupported enumerates at most the first group offered, then fails,
// per spec: an appliance below 7.2 cannot accept any group feed at all.
func (d *Driver) runUnsupported(ctx context.Context, a adaptor.GroupAdaptor) error {
	stop := &onceCollector{}
	_ = a.GetGroups(ctx, stop)
	if stop.name == "" {
		return fmt.Errorf("groups: appliance version %s does not support group feeds", d.Version)
	}
	return fmt.Errorf("groups: appliance version %s does not support group feeds, first group %s", d.Version, stop.name)
}

// onceCollector captures the first group name offered, then signals the
// adaptor to stop by returning an error on every subsequent call.
type onceCollector struct {
	name string
}

func (o *onceCollector) PushGroup(ctx context.Context, name string, members []docid.Principal) error {
	if o.name == "" {
		o.name = name
		return fmt.Errorf("groups: stopping after first group")
	}
	return fmt.Errorf("groups: stopping after first group")
}

func (d *Driver) runIncremental(ctx context.Context, a adaptor.GroupAdaptor) error {
	c := &groupCollector{d: d, source: d.Datasource, kind: journal.KindGroup}
	if err := a.GetGroups(ctx, c); err != nil {
		return err
	}
	return c.finish(ctx)
}

func (d *Driver) runFull(ctx context.Context, a adaptor.GroupAdaptor) error {
	writeTo, clear := d.aliases.Rotate(d.Datasource)

	c := &groupCollector{d: d, source: writeTo, kind: journal.KindGroup}
	if err := a.GetGroups(ctx, c); err != nil {
		return err
	}
	if err := c.finish(ctx); err != nil {
		return err
	}

	emptyPayload, err := feed.EncodeGroups(nil)
	if err != nil {
		return fmt.Errorf("groups: encode empty full feed: %w", err)
	}
	clearErr := feed.Run(ctx, d.Policy, func() error {
		return d.Transport.Send(ctx, clear, feed.TypeFull, emptyPayload)
	})
	_ = d.archiver().Archive(ctx, clear, feed.TypeFull, emptyPayload, clearErr)
	if clearErr != nil {
		d.Journal.RecordBatchFailure(journal.KindGroup)
		return fmt.Errorf("groups: clear previous alias %s: %w", clear, clearErr)
	}
	return nil
}

// State returns the driver's current run state.
func (d *Driver) State() push.RunState { return d.tracker.State() }
