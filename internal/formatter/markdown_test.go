package formatter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetscribe/backend/internal/chunker"
	"github.com/meetscribe/backend/internal/extraction"
)

func sampleResult() *extraction.Result {
	return &extraction.Result{
		Chunks: []extraction.ChunkExtraction{
			{
				ChunkIndex: 0,
				Concepts:   []extraction.Concept{{Name: "Goroutine", Definition: "a lightweight thread"}},
				Tools:      []extraction.Tool{{Name: "pprof", Purpose: "profiling"}},
				QA:         []extraction.QA{{Question: "When to use channels?", Answer: "For ownership transfer."}},
			},
			{
				ChunkIndex: 1,
				Concepts:   []extraction.Concept{{Name: "goroutine", Definition: "repeat with different case"}},
			},
		},
		Consolidated: extraction.Consolidated{
			Summary:       "A session on Go concurrency.",
			BestPractices: []string{"share memory by communicating"},
			Insights:      []string{"channels express ownership"},
			Timeline:      []extraction.TimelineEntry{{TimeRange: "0:00-10:00", Summary: "intro"}},
		},
		ActionItems: []extraction.ActionItem{
			{Description: "read the memory model", Owner: "everyone", DueNote: "next week"},
		},
	}
}

func sampleSet() *chunker.ChunkSet {
	return &chunker.ChunkSet{Metadata: chunker.Metadata{ChunkCount: 2, TotalDurationSeconds: 1500}}
}

func TestFormat_SectionOrder(t *testing.T) {
	f := NewMarkdownFormatter(nil)
	docs, err := f.Format(sampleResult(), sampleSet(), map[string]string{"title": "Go Concurrency", "instructor": "Alice"})
	require.NoError(t, err)

	md := string(docs.Primary.Data)
	sections := []string{
		"# Go Concurrency",
		"## Summary",
		"## Action Items",
		"## Best Practices",
		"## Key Insights",
		"## Concept Glossary",
		"## Tools & Frameworks",
		"## Q&A",
		"## Timeline",
	}
	pos := -1
	for _, s := range sections {
		idx := strings.Index(md, s)
		require.NotEqual(t, -1, idx, "missing section %q", s)
		assert.Greater(t, idx, pos, "section %q out of order", s)
		pos = idx
	}

	assert.Equal(t, "study_guide.md", docs.Primary.Name)
	assert.Contains(t, md, "- [ ] read the memory model (everyone)")
	assert.Contains(t, md, "**Session length:** 25m 0s")
}

func TestFormat_ConceptRepeatsCollapse(t *testing.T) {
	f := NewMarkdownFormatter(nil)
	docs, err := f.Format(sampleResult(), sampleSet(), nil)
	require.NoError(t, err)

	md := string(docs.Primary.Data)
	assert.Equal(t, 1, strings.Count(md, "**Goroutine**"), "case-insensitive name repeat collapses")
	assert.NotContains(t, md, "repeat with different case")
}

func TestFormat_Deterministic(t *testing.T) {
	f := NewMarkdownFormatter(nil)
	a, err := f.Format(sampleResult(), sampleSet(), map[string]string{"title": "T"})
	require.NoError(t, err)
	b, err := f.Format(sampleResult(), sampleSet(), map[string]string{"title": "T"})
	require.NoError(t, err)
	assert.Equal(t, a.Primary.Data, b.Primary.Data)
}

func TestFormat_SecondaryPlainText(t *testing.T) {
	f := NewMarkdownFormatter(nil)
	docs, err := f.Format(sampleResult(), sampleSet(), nil)
	require.NoError(t, err)

	require.NotNil(t, docs.Secondary)
	assert.Equal(t, "study_guide.txt", docs.Secondary.Name)
	txt := string(docs.Secondary.Data)
	assert.NotContains(t, txt, "##")
	assert.NotContains(t, txt, "**")
	assert.Contains(t, txt, "Summary")
}

func TestFormat_EmptyResultStillRenders(t *testing.T) {
	f := NewMarkdownFormatter(nil)
	docs, err := f.Format(&extraction.Result{}, nil, nil)
	require.NoError(t, err)
	md := string(docs.Primary.Data)
	assert.Contains(t, md, "# Study Guide")
	assert.Contains(t, md, "_No summary available._")
	assert.Contains(t, md, "_None._")
}

func TestFormat_NilResult(t *testing.T) {
	f := NewMarkdownFormatter(nil)
	_, err := f.Format(nil, nil, nil)
	assert.Error(t, err)
}
