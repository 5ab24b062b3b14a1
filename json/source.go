package json

import (
	"fmt"
	"io"
	"os"

	"github.com/fwojciec/chatstream"
)

// Interface compliance check.
var _ chatstream.Source = (*Source)(nil)

// Source replays a captured JSON Lines chunk stream. Chunks are decoded
// lazily, one per call to Next.
type Source struct {
	dec    *Decoder
	closer io.Closer
	closed bool
}

// NewSource returns a Source decoding from r. If r is an io.Closer, Close
// closes it.
func NewSource(r io.Reader) *Source {
	s := &Source{dec: NewDecoder(r)}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Open returns a Source reading the JSON Lines file at path.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	return NewSource(f), nil
}

// Next decodes the next chunk. It returns io.EOF at the end of the input.
func (s *Source) Next() (chatstream.Chunk, error) {
	if s.closed {
		return chatstream.Chunk{}, chatstream.ErrSourceClosed
	}
	return s.dec.Decode()
}

// Close releases the underlying reader. It is safe to call more than once.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
