// Package adaptor defines the narrow interfaces a repository-specific
// connector implements and the capabilities object the framework hands
// back to it, so the two sides reference each other through interfaces
// rather than a cyclic concrete dependency.
package adaptor

import (
	"context"
	"io"
	"time"

	"github.com/googlegsa/library/config"
	"github.com/googlegsa/library/docid"
)

// AuthzStatus is the adaptor's verdict for one document/identity pair.
type AuthzStatus int

const (
	Permit AuthzStatus = iota
	Deny
	Indeterminate
)

// IdPusher is the capability an adaptor uses to emit identifiers during
// enumeration, without needing to see the sender's batching or retry
// internals.
type IdPusher interface {
	// PushDocId emits one identifier, returning a non-nil error if the
	// caller should stop enumerating (e.g. context canceled).
	PushDocId(ctx context.Context, id docid.DocId) error
	// PushRecord emits one full record (metadata, ACL, flags).
	PushRecord(ctx context.Context, rec docid.Record) error
}

// Adaptor is the repository-specific implementation the framework drives.
// A conforming type supplies enumeration and content retrieval; the
// framework supplies everything else (scheduling, feed delivery, serving,
// authorization plumbing).
type Adaptor interface {
	// GetDocIds enumerates the full corpus (or, for incremental
	// adaptors, just the changed subset), pushing each one through
	// pusher. Returning an error aborts the enumeration; ctx
	// cancellation must be honored promptly.
	GetDocIds(ctx context.Context, pusher IdPusher) error

	// GetDocContent supplies the content and metadata for a single
	// document, writing through resp's response-state-machine methods.
	GetDocContent(ctx context.Context, req *Request, resp Response) error

	// IsUserAuthorized classifies identity's access to each of ids. A
	// missing entry in the result map is treated by the framework as
	// Deny.
	IsUserAuthorized(ctx context.Context, identity string, ids []docid.DocId) (map[docid.DocId]AuthzStatus, error)
}

// IncrementalAdaptor is implemented by adaptors that support change
// polling distinct from full enumeration (C8's driver calls this
// instead of GetDocIds when present).
type IncrementalAdaptor interface {
	Adaptor
	GetModifiedDocIds(ctx context.Context, pusher IdPusher) error
}

// GroupAdaptor is implemented by adaptors that publish group membership
// feeds (C9).
type GroupAdaptor interface {
	Adaptor
	GetGroups(ctx context.Context, pusher GroupPusher) error
}

// GroupPusher is the capability an adaptor uses to emit group membership
// during GetGroups.
type GroupPusher interface {
	PushGroup(ctx context.Context, name string, members []docid.Principal) error
}

// Request is the incoming content-retrieval request, decoded from the
// appliance's GET/HEAD.
type Request struct {
	DocId            docid.DocId
	Method           string // "GET" or "HEAD"
	IfModifiedSince  *time.Time
	AcceptsGzip      bool
	TrustedAppliance bool
}

// Response is the narrow response-state-machine surface an adaptor's
// GetDocContent drives. Exactly one of the terminal methods
// (RespondNotModified, RespondNotFound, GetOutputStream) may be called,
// after which mutators fail with an illegal-state error; see the serve
// package for the concrete implementation and its state transitions.
type Response interface {
	SetContentType(contentType string) error
	AddMetadata(key, value string) error
	SetAcl(acl docid.Acl) error
	SetNoIndex(noIndex bool) error
	SetNoFollow(noFollow bool) error
	SetNoArchive(noArchive bool) error
	AddAnchor(text, url string) error

	RespondNotModified() error
	RespondNotFound() error
	GetOutputStream() (io.Writer, error)
}

// Capabilities is the narrow object the framework hands to an adaptor at
// initialization time: push identifiers out of band, register an authn
// handler, and read the active configuration. This replaces the source
// framework's back-reference from adaptor to context with a one-way
// interface the adaptor holds, eliminating the ownership cycle.
type Capabilities interface {
	// PushDocIdsNow triggers an out-of-schedule full push.
	PushDocIdsNow(ctx context.Context) error
	// RegisterAuthnHandler installs a handler invoked when an
	// unauthenticated request is denied (begins a SAML-style flow).
	RegisterAuthnHandler(handler AuthnHandler)
	// Config returns the framework's resolved configuration.
	Config() *config.Config
}

// AuthnHandler takes over a request when an unauthenticated client is
// denied access, to begin an out-of-band authentication flow.
type AuthnHandler interface {
	HandleUnauthenticated(ctx context.Context, req *Request) error
}
