package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocess_WordLevelMerge(t *testing.T) {
	raw := []RawSegment{
		{
			Speaker: "Alice",
			Words: []Word{
				{Text: "welcome", StartSeconds: 0.0, EndSeconds: 0.4},
				{Text: "to", StartSeconds: 0.4, EndSeconds: 0.6},
				{Text: "class", StartSeconds: 0.6, EndSeconds: 1.1},
			},
		},
		{
			Speaker: "Bob",
			Words: []Word{
				{Text: "thanks", StartSeconds: 2.0, EndSeconds: 2.5},
			},
		},
	}

	segs, err := Preprocess(raw)
	require.NoError(t, err)
	require.Len(t, segs, 2)

	assert.Equal(t, "Alice", segs[0].Speaker)
	assert.Equal(t, "welcome to class", segs[0].Text)
	assert.Equal(t, 0.0, segs[0].StartSeconds)
	assert.Equal(t, 1.1, segs[0].EndSeconds)
	assert.Equal(t, 3, segs[0].WordCount)

	assert.Equal(t, "thanks", segs[1].Text)
	assert.Equal(t, 1, segs[1].WordCount)
}

func TestPreprocess_CombinedPassThrough(t *testing.T) {
	raw := []RawSegment{
		{Speaker: "Alice", Text: "two plus two is four", StartSeconds: 1, EndSeconds: 4},
	}

	segs, err := Preprocess(raw)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "two plus two is four", segs[0].Text)
	assert.Equal(t, 5, segs[0].WordCount)
	assert.Equal(t, 1.0, segs[0].StartSeconds)
	assert.Equal(t, 4.0, segs[0].EndSeconds)
}

// A segment carrying both text and words counts as combined: detection only
// inspects the absence of a top-level text field.
func TestPreprocess_TextWinsOverWords(t *testing.T) {
	raw := []RawSegment{
		{Speaker: "Alice", Text: "already combined", Words: []Word{{Text: "ignored"}}},
	}

	segs, err := Preprocess(raw)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "already combined", segs[0].Text)
}

func TestPreprocess_Empty(t *testing.T) {
	_, err := Preprocess(nil)
	assert.ErrorIs(t, err, ErrEmptyTranscript)
}

func TestParse_JSONSegments(t *testing.T) {
	payload := `[{"speaker":"Alice","text":"hello there","start_seconds":0,"end_seconds":2}]`
	segs, err := Parse([]byte(payload))
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, 2, segs[0].WordCount)
}

func TestParse_Garbage(t *testing.T) {
	_, err := Parse([]byte("not a transcript"))
	assert.Error(t, err)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse([]byte("   "))
	assert.ErrorIs(t, err, ErrEmptyTranscript)
}
