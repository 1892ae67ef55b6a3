package serve

import (
	"errors"
	"fmt"
	"io"

	"github.com/googlegsa/library/docid"
)

// responseState tracks where in its one-shot lifecycle a response
// currently sits. Every response starts in setup, where metadata can
// still be accumulated, and moves to exactly one terminal state; once
// there, further mutator calls are rejected.
type responseState int

const (
	stateSetup responseState = iota
	stateNotModified
	stateNotFound
	stateStreaming
)

func (s responseState) String() string {
	switch s {
	case stateSetup:
		return "setup"
	case stateNotModified:
		return "not-modified"
	case stateNotFound:
		return "not-found"
	case stateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// ErrIllegalState is returned when a caller mutates a response after it
// has already left the setup state.
var ErrIllegalState = errors.New("serve: response already left setup state")

// response is the concrete adaptor.Response implementation: it
// accumulates metadata/ACL/robots directives while in setup, then
// transitions exactly once into a terminal state that the HTTP handler
// renders.
type response struct {
	state responseState

	contentType string
	metadata    *docid.MetadataBuilder
	acl         docid.Acl
	hasAcl      bool
	noIndex     bool
	noFollow    bool
	noArchive   bool
	anchors     []Anchor

	output io.Writer
}

func newResponse() *response {
	return &response{metadata: docid.NewMetadataBuilder()}
}

func (r *response) requireSetup() error {
	if r.state != stateSetup {
		return fmt.Errorf("%w: in %s", ErrIllegalState, r.state)
	}
	return nil
}

func (r *response) SetContentType(contentType string) error {
	if err := r.requireSetup(); err != nil {
		return err
	}
	r.contentType = contentType
	return nil
}

func (r *response) AddMetadata(key, value string) error {
	if err := r.requireSetup(); err != nil {
		return err
	}
	r.metadata.Add(key, value)
	return nil
}

func (r *response) SetAcl(acl docid.Acl) error {
	if err := r.requireSetup(); err != nil {
		return err
	}
	r.acl = acl
	r.hasAcl = true
	return nil
}

func (r *response) SetNoIndex(noIndex bool) error {
	if err := r.requireSetup(); err != nil {
		return err
	}
	r.noIndex = noIndex
	return nil
}

func (r *response) SetNoFollow(noFollow bool) error {
	if err := r.requireSetup(); err != nil {
		return err
	}
	r.noFollow = noFollow
	return nil
}

func (r *response) SetNoArchive(noArchive bool) error {
	if err := r.requireSetup(); err != nil {
		return err
	}
	r.noArchive = noArchive
	return nil
}

func (r *response) AddAnchor(text, url string) error {
	if err := r.requireSetup(); err != nil {
		return err
	}
	r.anchors = append(r.anchors, Anchor{Text: text, URL: url})
	return nil
}

func (r *response) RespondNotModified() error {
	if err := r.requireSetup(); err != nil {
		return err
	}
	r.state = stateNotModified
	return nil
}

func (r *response) RespondNotFound() error {
	if err := r.requireSetup(); err != nil {
		return err
	}
	r.state = stateNotFound
	return nil
}

func (r *response) GetOutputStream() (io.Writer, error) {
	if err := r.requireSetup(); err != nil {
		return nil, err
	}
	r.state = stateStreaming
	return r.output, nil
}

// builtMetadata returns the accumulated metadata, for the handler to
// render into the external-metadata header after GetDocContent returns.
func (r *response) builtMetadata() docid.Metadata {
	return r.metadata.Build()
}
