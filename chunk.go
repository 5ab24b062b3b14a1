package chatstream

import "time"

// Chunk is one streamed unit of a chat completion. It carries zero or more
// per-output deltas. The chunk that carries Usage is the terminal chunk.
type Chunk struct {
	ID                string
	Model             string
	Created           time.Time
	SystemFingerprint string

	// Position is the stream position of this chunk. Positions never
	// decrease across a stream.
	Position int64

	// TotalOutputs is the number of parallel outputs in the stream.
	// Zero means the chunk does not report it.
	TotalOutputs int

	Outputs   []OutputDelta
	Usage     *Usage
	Citations []string
}

// Terminal reports whether the chunk carries usage statistics.
func (c Chunk) Terminal() bool {
	return c.Usage != nil
}

// MaxOutputs bounds the number of parallel outputs in one stream. Larger
// output counts and indices are protocol errors.
const MaxOutputs = 1024

// OutputDelta is the incremental fragment for one output within one chunk.
// Every field except Index is optional.
type OutputDelta struct {
	Index            int
	Role             Role
	Reasoning        string
	Content          string
	EncryptedContent string
	ToolCalls        []ToolCall
	Citations        []InlineCitation

	// FinishReason is empty while the output is still generating.
	FinishReason FinishReason
}

// Finished reports whether the delta carries a finish signal.
func (d OutputDelta) Finished() bool {
	return d.FinishReason != FinishNone
}

// ClientToolCalls returns the tool calls the client is expected to execute.
func (d OutputDelta) ClientToolCalls() []ToolCall {
	return d.toolCalls(ToolCallClient)
}

// ServerToolCalls returns the tool calls executed by the server.
func (d OutputDelta) ServerToolCalls() []ToolCall {
	return d.toolCalls(ToolCallServer)
}

func (d OutputDelta) toolCalls(kind ToolCallKind) []ToolCall {
	var calls []ToolCall
	for _, tc := range d.ToolCalls {
		if tc.Kind == kind {
			calls = append(calls, tc)
		}
	}
	return calls
}

// ToolCallKind tells who executes a tool call.
type ToolCallKind string

const (
	ToolCallClient ToolCallKind = "client"
	ToolCallServer ToolCallKind = "server"
)

// ToolCall is a tool-call fragment. Fragments sharing an ID belong to the same
// call; Arguments holds the argument text carried by this fragment only.
type ToolCall struct {
	ID        string
	Kind      ToolCallKind
	Name      string
	Arguments string
	Status    string
}

// InlineCitation references a source for a span of an output's content.
type InlineCitation struct {
	ID         string
	StartIndex int
	EndIndex   int
	URL        string
}

// Usage tracks token consumption for a whole stream.
// ReasoningTokens is zero when the model did not report it.
type Usage struct {
	PromptTokens       int
	CompletionTokens   int
	TotalTokens        int
	ReasoningTokens    int
	CachedPromptTokens int
	NumSourcesUsed     int
}

// Role represents the role of a message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)
