package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuildsAUsableTracerWithSamplingDisabled(t *testing.T) {
	p, err := New(Config{ServiceName: "dab-test", Rank: 0, SamplingRatio: 0})
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	tracer := p.Tracer("test")
	_, span := tracer.Start(context.Background(), "unit-of-work")
	defer span.End()
	assert.NotNil(t, span)
}

func TestNewBuildsATracerWithFullSampling(t *testing.T) {
	p, err := New(Config{ServiceName: "dab-test", Rank: 1, SamplingRatio: 1})
	require.NoError(t, err)
	defer p.Shutdown(context.Background())
	assert.NotNil(t, p.Tracer("test"))
}

func TestShutdownIsIdempotentSafe(t *testing.T) {
	p, err := New(Config{ServiceName: "dab-test", Rank: 2, SamplingRatio: 0.5})
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}
