// Package gemini implements [chatstream.Provider] for the Google Gemini API.
//
// It wraps the google.golang.org/genai SDK, translating Gemini responses into
// chatstream chunks. Streaming uses the SDK's iter.Seq2 iterator, wrapped
// into the pull-based [chatstream.Source] interface.
package gemini

const (
	defaultModel     = "gemini-2.5-flash"
	defaultMaxTokens = 65536
)
