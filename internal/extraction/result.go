// Package extraction runs the multi-stage LLM orchestration that turns
// transcript chunks into structured study-guide content.
package extraction

// Concept is a named concept with its explanation.
type Concept struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// QA is one question-and-answer exchange from the session.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Asker    string `json:"asker,omitempty"`
}

// Tool is a tool or framework mentioned in the session.
type Tool struct {
	Name    string `json:"name"`
	Purpose string `json:"purpose,omitempty"`
}

// Assignment is homework or preparation mentioned in a chunk.
type Assignment struct {
	Description string `json:"description"`
	DueNote     string `json:"due_note,omitempty"`
}

// ChunkExtraction is the stage-1 result for a single chunk. When the model
// response fails to parse, Raw holds the unparsed text and ParseError the
// reason; the rest of the fields stay empty rather than aborting the run.
type ChunkExtraction struct {
	ChunkIndex  int          `json:"chunk_index"`
	Theme       string       `json:"theme,omitempty"`
	Concepts    []Concept    `json:"concepts,omitempty"`
	Topics      []string     `json:"topics,omitempty"`
	QA          []QA         `json:"qa,omitempty"`
	Tools       []Tool       `json:"tools,omitempty"`
	Assignments []Assignment `json:"assignments,omitempty"`
	Raw         string       `json:"raw,omitempty"`
	ParseError  string       `json:"parse_error,omitempty"`
}

// TimelineEntry is one row of the session timeline.
type TimelineEntry struct {
	TimeRange string `json:"time_range"`
	Summary   string `json:"summary"`
}

// Consolidated is the stage-2 cross-chunk merge: narrative summary plus
// deduplicated lists.
type Consolidated struct {
	Summary       string          `json:"summary"`
	BestPractices []string        `json:"best_practices,omitempty"`
	Insights      []string        `json:"insights,omitempty"`
	Timeline      []TimelineEntry `json:"timeline,omitempty"`
}

// ActionItem is one stage-3 commitment, assignment or next-session prep item.
type ActionItem struct {
	Description string `json:"description"`
	Owner       string `json:"owner,omitempty"`
	DueNote     string `json:"due_note,omitempty"`
	Category    string `json:"category,omitempty"` // assignment | commitment | preparation
}

// StageFailure records a stage-level error with the raw model response
// preserved for diagnosis.
type StageFailure struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
	Raw   string `json:"raw,omitempty"`
}

// Result is the complete extraction output handed to the formatter.
type Result struct {
	Chunks       []ChunkExtraction `json:"chunks"`
	Consolidated Consolidated      `json:"consolidated"`
	ActionItems  []ActionItem      `json:"action_items,omitempty"`
	Failures     []StageFailure    `json:"failures,omitempty"`
}
