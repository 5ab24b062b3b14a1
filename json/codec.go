package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fwojciec/chatstream"
)

// Encoder writes chunks as JSON Lines.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes c followed by a newline.
func (e *Encoder) Encode(c chatstream.Chunk) error {
	data, err := MarshalChunk(c)
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}
	data = append(data, '\n')
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}
	return nil
}

// Decoder reads chunks from a JSON Lines stream.
type Decoder struct {
	dec  *json.Decoder
	line int
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: json.NewDecoder(r)}
}

// Decode reads the next chunk. It returns io.EOF when the input is exhausted.
func (d *Decoder) Decode() (chatstream.Chunk, error) {
	var dto chunkDTO
	if err := d.dec.Decode(&dto); err != nil {
		if errors.Is(err, io.EOF) {
			return chatstream.Chunk{}, io.EOF
		}
		return chatstream.Chunk{}, fmt.Errorf("chunk %d: %w", d.line, err)
	}
	c, err := chunkFromDTO(dto)
	if err != nil {
		return chatstream.Chunk{}, fmt.Errorf("chunk %d: %w", d.line, err)
	}
	d.line++
	return c, nil
}

// DecodeAll reads chunks until the input is exhausted.
func (d *Decoder) DecodeAll() ([]chatstream.Chunk, error) {
	var chunks []chatstream.Chunk
	for {
		c, err := d.Decode()
		if errors.Is(err, io.EOF) {
			return chunks, nil
		}
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
}
