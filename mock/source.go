package mock

import "github.com/fwojciec/chatstream"

// Interface compliance check.
var _ chatstream.Source = (*Source)(nil)

// Source is a test double for chatstream.Source.
// NextFn panics when nil to catch missing setup. CloseFn is nil-safe because
// test code commonly calls defer src.Close() without caring about the result.
type Source struct {
	NextFn  func() (chatstream.Chunk, error)
	CloseFn func() error
}

// Next delegates to NextFn.
func (s *Source) Next() (chatstream.Chunk, error) {
	return s.NextFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Source) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}
