package serve

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upperTransform struct{}

func (upperTransform) Name() string { return "upper" }

func (upperTransform) Apply(_ context.Context, _ string, in []byte, out io.Writer) error {
	_, err := out.Write([]byte(strings.ToUpper(string(in))))
	return err
}

type failingTransform struct{}

func (failingTransform) Name() string { return "failing" }

func (failingTransform) Apply(_ context.Context, _ string, _ []byte, _ io.Writer) error {
	return errors.New("boom")
}

type prefixTransform struct{ prefix string }

func (t prefixTransform) Name() string { return "prefix-" + t.prefix }

func (t prefixTransform) Apply(_ context.Context, _ string, in []byte, out io.Writer) error {
	_, err := out.Write([]byte(t.prefix + string(in)))
	return err
}

func TestTransformPipelineAppliesStagesInOrder(t *testing.T) {
	p := NewTransformPipeline(1024, false)
	p.Register(upperTransform{}, true)

	out, err := p.Run(context.Background(), "text/plain", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "HELLO", string(out))
}

func TestTransformPipelineRunsOutermostFirstRegisteredLast(t *testing.T) {
	p := NewTransformPipeline(1024, false)
	p.Register(prefixTransform{prefix: "A:"}, true)
	p.Register(prefixTransform{prefix: "B:"}, true)

	// B is registered last, so it runs first (innermost); A runs last
	// (outermost), wrapping B's output.
	out, err := p.Run(context.Background(), "text/plain", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "A:B:x", string(out))
}

func TestTransformPipelineBypassesOversizedContentWhenNotRequired(t *testing.T) {
	p := NewTransformPipeline(4, false)
	p.Register(upperTransform{}, true)

	out, err := p.Run(context.Background(), "text/plain", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
	assert.True(t, p.Bypassed(5))
}

func TestTransformPipelineOversizedContentFailsWhenRequired(t *testing.T) {
	p := NewTransformPipeline(4, true)
	p.Register(upperTransform{}, true)

	_, err := p.Run(context.Background(), "text/plain", []byte("hello"))
	assert.Error(t, err)
}

func TestTransformPipelineRequiredStageFailureAbortsPipeline(t *testing.T) {
	p := NewTransformPipeline(1024, false)
	p.Register(failingTransform{}, true)

	_, err := p.Run(context.Background(), "text/plain", []byte("hello"))
	assert.Error(t, err)
}

func TestTransformPipelineOptionalStageFailurePassesThrough(t *testing.T) {
	p := NewTransformPipeline(1024, false)
	p.Register(upperTransform{}, true)
	p.Register(failingTransform{}, false)

	out, err := p.Run(context.Background(), "text/plain", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "HELLO", string(out))
}

func TestTransformPipelineNoStagesPassesThroughUnchanged(t *testing.T) {
	p := NewTransformPipeline(1024, false)
	out, err := p.Run(context.Background(), "text/plain", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}
