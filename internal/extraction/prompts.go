package extraction

import (
	"fmt"
	"strings"

	"github.com/meetscribe/backend/internal/chunker"
)

const chunkSystemPrompt = `You analyze a slice of a recorded session transcript and extract structured study material. Output ONLY a valid JSON object, no markdown, no explanations.`

const chunkSchema = `{
  "theme": "<one-line theme of this slice>",
  "concepts": [{"name": "<concept>", "definition": "<clear explanation>"}],
  "topics": ["<topic>"],
  "qa": [{"question": "<question asked>", "answer": "<answer given>", "asker": "<who asked, if clear>"}],
  "tools": [{"name": "<tool or framework>", "purpose": "<what it was used for>"}],
  "assignments": [{"description": "<homework or task mentioned>", "due_note": "<due date info if any>"}]
}`

func buildChunkPrompt(c chunker.Chunk, presenter string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session slice %d (%.0f-%.0f seconds). Primary presenter: %s.\n", c.Index+1, c.StartSeconds, c.EndSeconds, presenter)
	if c.HasInteraction {
		b.WriteString("This slice contains multi-speaker interaction; capture questions and answers.\n")
	}
	b.WriteString("\nTranscript:\n")
	for _, s := range c.Segments {
		fmt.Fprintf(&b, "[%s] %s\n", s.Speaker, s.Text)
	}
	b.WriteString("\nExtract study material matching this exact schema:\n")
	b.WriteString(chunkSchema)
	return b.String()
}

const consolidateSystemPrompt = `You consolidate per-slice extraction results from one recorded session into a single study summary. Output ONLY a valid JSON object.`

const consolidateSchema = `{
  "summary": "<3-6 sentence narrative summary of the whole session>",
  "best_practices": ["<unique best practice>"],
  "insights": ["<unique insight>"],
  "timeline": [{"time_range": "<e.g. 0:00-10:00>", "summary": "<what happened>"}]
}`

func buildConsolidatePrompt(chunks []ChunkExtraction, chunkResultsJSON string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Per-slice extraction results for %d slices follow as JSON.\n\n%s\n\n", len(chunks), chunkResultsJSON)
	b.WriteString("Merge them into one session summary matching this exact schema:\n")
	b.WriteString(consolidateSchema)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- DEDUPLICATE AGGRESSIVELY: if slices repeat the same practice or insight in different words, output it ONCE. Target 10-20 unique entries per list even when the source repeats a point many times.\n")
	b.WriteString("- Keep the timeline in chronological order, one entry per slice at most.\n")
	b.WriteString("- Output ONLY the JSON.")
	return b.String()
}

const actionSystemPrompt = `You extract action items from a consolidated session summary. Output ONLY a valid JSON object.`

const actionSchema = `{
  "action_items": [{"description": "<what to do>", "owner": "<who, if stated>", "due_note": "<when, if stated>", "category": "<assignment|commitment|preparation>"}]
}`

func buildActionPrompt(consolidatedJSON string) string {
	var b strings.Builder
	b.WriteString("Consolidated session summary as JSON:\n\n")
	b.WriteString(consolidatedJSON)
	b.WriteString("\n\nExtract every assignment, commitment and next-session preparation item matching this exact schema:\n")
	b.WriteString(actionSchema)
	b.WriteString("\nOutput ONLY the JSON.")
	return b.String()
}
