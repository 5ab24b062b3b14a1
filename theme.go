package chatstream

// Theme defines semantic color mappings using ANSI color indices (0-15).
// The user's terminal theme determines the actual RGB values, so output
// automatically matches any color scheme.
type Theme struct {
	Header    int // Output block headers
	Reasoning int // Reasoning text
	ToolCall  int // Tool call lines
	Citation  int // Citation references
	Error     int // Error messages
	Success   int // Finish indicators
	Muted     int // Status bar, usage lines
	CodeBg    int // Code block background
	Accent    int // Headings, links
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		Header:    4,
		Reasoning: 8,
		ToolCall:  3,
		Citation:  6,
		Error:     1,
		Success:   2,
		Muted:     8,
		CodeBg:    0,
		Accent:    5,
	}
}
