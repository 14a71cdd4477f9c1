package formatter

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/meetscribe/backend/internal/chunker"
	"github.com/meetscribe/backend/internal/extraction"
)

// MarkdownFormatter renders the study guide as markdown with a fixed section
// order, plus a plain-text secondary rendering. Output is deterministic for
// identical input so pipeline re-runs produce byte-identical artifacts.
type MarkdownFormatter struct {
	logger *zap.Logger
}

var _ Formatter = (*MarkdownFormatter)(nil)

// NewMarkdownFormatter creates a markdown study-guide formatter.
func NewMarkdownFormatter(logger *zap.Logger) *MarkdownFormatter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarkdownFormatter{logger: logger}
}

// Format implements Formatter. Section order is fixed: summary, action
// items, best practices, insights, concept glossary, tool table, Q&A,
// timeline. A secondary rendering failure is logged and dropped, never
// propagated.
func (f *MarkdownFormatter) Format(result *extraction.Result, set *chunker.ChunkSet, metadata map[string]string) (*Documents, error) {
	if result == nil {
		return nil, fmt.Errorf("nil extraction result")
	}

	md := f.renderMarkdown(result, set, metadata)
	docs := &Documents{
		Primary: Document{Name: "study_guide.md", ContentType: "text/markdown", Data: []byte(md)},
	}

	if txt, err := renderPlainText(md); err != nil {
		f.logger.Warn("secondary rendering failed", zap.Error(err))
	} else {
		docs.Secondary = &Document{Name: "study_guide.txt", ContentType: "text/plain", Data: txt}
	}
	return docs, nil
}

func (f *MarkdownFormatter) renderMarkdown(result *extraction.Result, set *chunker.ChunkSet, metadata map[string]string) string {
	var b strings.Builder

	title := metadata["title"]
	if title == "" {
		title = "Study Guide"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if instructor := metadata["instructor"]; instructor != "" {
		fmt.Fprintf(&b, "**Instructor:** %s\n\n", instructor)
	}
	if course := metadata["course"]; course != "" {
		fmt.Fprintf(&b, "**Course:** %s\n\n", course)
	}
	if set != nil {
		fmt.Fprintf(&b, "**Session length:** %s\n\n", formatDuration(set.Metadata.TotalDurationSeconds))
	}

	b.WriteString("## Summary\n\n")
	if result.Consolidated.Summary != "" {
		b.WriteString(result.Consolidated.Summary)
		b.WriteString("\n\n")
	} else {
		b.WriteString("_No summary available._\n\n")
	}

	b.WriteString("## Action Items\n\n")
	if len(result.ActionItems) == 0 {
		b.WriteString("_None._\n\n")
	} else {
		for _, item := range result.ActionItems {
			line := "- [ ] " + item.Description
			if item.Owner != "" {
				line += " (" + item.Owner + ")"
			}
			if item.DueNote != "" {
				line += " — due: " + item.DueNote
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	writeList(&b, "Best Practices", result.Consolidated.BestPractices)
	writeList(&b, "Key Insights", result.Consolidated.Insights)

	b.WriteString("## Concept Glossary\n\n")
	concepts := collectConcepts(result.Chunks)
	if len(concepts) == 0 {
		b.WriteString("_None._\n\n")
	} else {
		for _, c := range concepts {
			fmt.Fprintf(&b, "- **%s** — %s\n", c.Name, c.Definition)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Tools & Frameworks\n\n")
	tools := collectTools(result.Chunks)
	if len(tools) == 0 {
		b.WriteString("_None._\n\n")
	} else {
		b.WriteString("| Tool | Purpose |\n|------|---------|\n")
		for _, t := range tools {
			fmt.Fprintf(&b, "| %s | %s |\n", t.Name, t.Purpose)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Q&A\n\n")
	qas := collectQA(result.Chunks)
	if len(qas) == 0 {
		b.WriteString("_None._\n\n")
	} else {
		for _, qa := range qas {
			fmt.Fprintf(&b, "**Q:** %s\n\n**A:** %s\n\n", qa.Question, qa.Answer)
		}
	}

	b.WriteString("## Timeline\n\n")
	if len(result.Consolidated.Timeline) == 0 {
		b.WriteString("_None._\n")
	} else {
		for _, t := range result.Consolidated.Timeline {
			fmt.Fprintf(&b, "- **%s** — %s\n", t.TimeRange, t.Summary)
		}
	}

	return b.String()
}

func writeList(b *strings.Builder, heading string, items []string) {
	fmt.Fprintf(b, "## %s\n\n", heading)
	if len(items) == 0 {
		b.WriteString("_None._\n\n")
		return
	}
	for _, item := range items {
		b.WriteString("- " + item + "\n")
	}
	b.WriteString("\n")
}

// collectConcepts gathers concepts across chunks in chunk order, dropping
// exact-name repeats.
func collectConcepts(chunks []extraction.ChunkExtraction) []extraction.Concept {
	seen := make(map[string]bool)
	var out []extraction.Concept
	for _, c := range chunks {
		for _, concept := range c.Concepts {
			key := strings.ToLower(strings.TrimSpace(concept.Name))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, concept)
		}
	}
	return out
}

func collectTools(chunks []extraction.ChunkExtraction) []extraction.Tool {
	seen := make(map[string]bool)
	var out []extraction.Tool
	for _, c := range chunks {
		for _, tool := range c.Tools {
			key := strings.ToLower(strings.TrimSpace(tool.Name))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, tool)
		}
	}
	return out
}

func collectQA(chunks []extraction.ChunkExtraction) []extraction.QA {
	var out []extraction.QA
	for _, c := range chunks {
		out = append(out, c.QA...)
	}
	return out
}

var mdMarkupRe = regexp.MustCompile(`[*_#|]+|\[ \]`)

// renderPlainText strips markdown markup for the secondary document.
func renderPlainText(md string) ([]byte, error) {
	if md == "" {
		return nil, fmt.Errorf("empty document")
	}
	var out []string
	for _, line := range strings.Split(md, "\n") {
		line = mdMarkupRe.ReplaceAllString(line, "")
		out = append(out, strings.TrimRight(line, " "))
	}
	return []byte(strings.Join(out, "\n")), nil
}

func formatDuration(seconds float64) string {
	mins := int(seconds) / 60
	secs := int(seconds) % 60
	if mins >= 60 {
		return fmt.Sprintf("%dh %dm", mins/60, mins%60)
	}
	return fmt.Sprintf("%dm %ds", mins, secs)
}
