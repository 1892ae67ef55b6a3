package feed

import "context"

// Archiver is an optional collaborator invoked with a feed's raw payload
// after a successful send and after a final (non-retryable) failure, so
// operators can audit exactly what was sent to the appliance.
type Archiver interface {
	Archive(ctx context.Context, source string, feedType FeedType, payload []byte, sendErr error) error
}

// NopArchiver discards every payload. It is the default when no archiver
// is configured.
type NopArchiver struct{}

func (NopArchiver) Archive(context.Context, string, FeedType, []byte, error) error { return nil }
