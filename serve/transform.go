package serve

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// Transform rewrites a document's bytes before they reach the appliance,
// e.g. to strip boilerplate or extract readable text from a native
// format.
type Transform interface {
	Name() string
	Apply(ctx context.Context, contentType string, in []byte, out io.Writer) error
}

// transformEntry pairs a registered Transform with whether its failure
// should abort the whole pipeline (required) or simply be skipped,
// passing the prior stage's bytes through unchanged (optional).
type transformEntry struct {
	transform Transform
	required  bool
}

// TransformPipeline runs an ordered chain of Transforms over a document's
// content, outermost-first (the first-registered transform wraps every
// later one, so it runs last, closest to the client), grounded on the
// teacher's executor.Registry pattern (a mutex-guarded ordered list)
// generalized here from "find the one matching executor" to "run every
// registered stage in sequence."
type TransformPipeline struct {
	mu      sync.RWMutex
	entries []transformEntry

	// maxBytes bounds the content size the pipeline will attempt to
	// transform at all; content larger than this bypasses every stage
	// and is served unmodified, matching the appliance's NO_TRANSFORM
	// behavior for oversized documents.
	maxBytes int64

	// required mirrors the transform.required config key: when true, a
	// document that would otherwise bypass the pipeline for being
	// oversized fails the request instead, as long as at least one
	// stage is registered.
	required bool
}

// NewTransformPipeline returns an empty pipeline bounded by maxBytes.
// required mirrors the transform.required config key: it governs whether
// an oversized document fails outright instead of bypassing the
// pipeline, once a stage has been registered.
func NewTransformPipeline(maxBytes int64, required bool) *TransformPipeline {
	return &TransformPipeline{maxBytes: maxBytes, required: required}
}

// Register appends a stage to the pipeline. required controls whether a
// stage's error aborts the whole pipeline or is silently bypassed.
func (p *TransformPipeline) Register(t Transform, required bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, transformEntry{transform: t, required: required})
}

// Bypassed reports whether content of the given size would skip every
// registered stage.
func (p *TransformPipeline) Bypassed(size int64) bool {
	return size > p.maxBytes
}

// Run applies every registered stage to content, outermost-first: stages
// run in reverse registration order, so the last-registered stage sees
// the raw content first and the first-registered stage produces the
// final output. If no stage is registered, content streams through
// unchanged (the NO_TRANSFORM state). If a stage is registered and
// content exceeds maxBytes, the pipeline is bypassed and content is
// returned unchanged, UNLESS the pipeline was constructed with
// required=true, in which case the oversized document fails with an
// error instead of being served untransformed. A required stage's own
// error aborts the pipeline and is returned to the caller; an optional
// stage's error is swallowed and that stage's input passes through as
// its output.
func (p *TransformPipeline) Run(ctx context.Context, contentType string, content []byte) ([]byte, error) {
	p.mu.RLock()
	entries := make([]transformEntry, len(p.entries))
	copy(entries, p.entries)
	p.mu.RUnlock()

	if len(entries) == 0 {
		return content, nil
	}

	if p.Bypassed(int64(len(content))) {
		if p.required {
			return nil, fmt.Errorf("serve: content exceeds %d bytes and a required transform is configured", p.maxBytes)
		}
		return content, nil
	}

	current := content
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		var buf bytes.Buffer
		if err := e.transform.Apply(ctx, contentType, current, &buf); err != nil {
			if e.required {
				return nil, fmt.Errorf("serve: required transform %q failed: %w", e.transform.Name(), err)
			}
			continue
		}
		current = buf.Bytes()
	}
	return current, nil
}
