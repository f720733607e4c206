package source

import (
	"context"
	"testing"

	"github.com/poiesic/medingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAdapter struct{}

func (staticAdapter) FetchBatch(ctx context.Context, cursor core.Cursor, limit int) (*Batch, error) {
	return &Batch{}, nil
}

func TestRegistry_Open(t *testing.T) {
	r := NewRegistry()
	r.Register("static", func(cfg core.SourceConfig) (Adapter, error) {
		return staticAdapter{}, nil
	})
	r.Register("broken", func(cfg core.SourceConfig) (Adapter, error) {
		return nil, assert.AnError
	})

	adapter, err := r.Open(core.SourceConfig{Kind: "static"})
	require.NoError(t, err)
	assert.NotNil(t, adapter)

	_, err = r.Open(core.SourceConfig{Kind: "nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownSource)
	assert.Equal(t, core.FailureFatalConfiguration, core.ClassifyFailure(err))

	_, err = r.Open(core.SourceConfig{Kind: "broken"})
	require.Error(t, err)
	assert.Equal(t, core.FailureFatalConfiguration, core.ClassifyFailure(err))

	assert.Equal(t, []string{"broken", "static"}, r.Kinds())
}
