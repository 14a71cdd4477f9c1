package providers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("stub", NewStubProvider()))

	err := r.Register("stub", NewStubProvider())
	require.Error(t, err, "duplicate registration is a startup error")

	p, err := r.Get("stub")
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = r.Get("recall")
	assert.ErrorIs(t, err, ErrNotImplemented)

	assert.Equal(t, []string{"stub"}, r.List())
}

func TestStub_Transcript(t *testing.T) {
	p := NewStubProvider()

	id, err := p.CreateSession(context.Background(), "https://zoom.us/j/1", CreateOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "stub-"))

	segs, err := p.GetTranscript(context.Background(), id)
	require.NoError(t, err)
	require.NotEmpty(t, segs)
	for _, s := range segs {
		assert.NotEmpty(t, s.Speaker)
		assert.Equal(t, len(strings.Fields(s.Text)), s.WordCount)
		assert.GreaterOrEqual(t, s.EndSeconds, s.StartSeconds)
	}

	status, err := p.GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "done", status)
	assert.NoError(t, p.LeaveSession(context.Background(), id))
}
