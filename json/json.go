// Package json encodes chunk sequences as JSON Lines and assembled responses
// as indented JSON.
package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/chatstream"
)

// version is written to every encoded chunk so captures can evolve.
const version = 1

// chunkDTO is the v1 wire format for one chunk, one per line.
type chunkDTO struct {
	Version           int        `json:"v"`
	ID                string     `json:"id,omitempty"`
	Model             string     `json:"model,omitempty"`
	Created           time.Time  `json:"created,omitzero"`
	SystemFingerprint string     `json:"system_fingerprint,omitempty"`
	Position          int64      `json:"position,omitempty"`
	TotalOutputs      int        `json:"total_outputs,omitempty"`
	Outputs           []deltaDTO `json:"outputs,omitempty"`
	Usage             *usageDTO  `json:"usage,omitempty"`
	Citations         []string   `json:"citations,omitempty"`
}

type deltaDTO struct {
	Index            int           `json:"index"`
	Role             string        `json:"role,omitempty"`
	Reasoning        string        `json:"reasoning,omitempty"`
	Content          string        `json:"content,omitempty"`
	EncryptedContent string        `json:"encrypted_content,omitempty"`
	ToolCalls        []toolCallDTO `json:"tool_calls,omitempty"`
	Citations        []citationDTO `json:"citations,omitempty"`
	FinishReason     string        `json:"finish_reason,omitempty"`
}

type toolCallDTO struct {
	ID        string `json:"id,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Status    string `json:"status,omitempty"`
}

type citationDTO struct {
	ID         string `json:"id,omitempty"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
	URL        string `json:"url,omitempty"`
}

type usageDTO struct {
	PromptTokens       int `json:"prompt_tokens"`
	CompletionTokens   int `json:"completion_tokens"`
	TotalTokens        int `json:"total_tokens"`
	ReasoningTokens    int `json:"reasoning_tokens,omitempty"`
	CachedPromptTokens int `json:"cached_prompt_tokens,omitempty"`
	NumSourcesUsed     int `json:"num_sources_used,omitempty"`
}

// MarshalChunk serializes a Chunk to a single line of JSON without the
// trailing newline.
func MarshalChunk(c chatstream.Chunk) ([]byte, error) {
	return json.Marshal(chunkToDTO(c))
}

// UnmarshalChunk deserializes a Chunk from one JSON value.
func UnmarshalChunk(data []byte) (chatstream.Chunk, error) {
	var dto chunkDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return chatstream.Chunk{}, fmt.Errorf("unmarshal chunk: %w", err)
	}
	return chunkFromDTO(dto)
}

// SaveChunks writes chunks to a JSON Lines file, creating parent directories
// as needed. The file is replaced atomically.
func SaveChunks(path string, chunks []chatstream.Chunk) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	enc := NewEncoder(f)
	for i, c := range chunks {
		if err := enc.Encode(c); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// LoadChunks reads every chunk from a JSON Lines file.
func LoadChunks(path string) ([]chatstream.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	defer f.Close()
	return NewDecoder(f).DecodeAll()
}

func chunkToDTO(c chatstream.Chunk) chunkDTO {
	dto := chunkDTO{
		Version:           version,
		ID:                c.ID,
		Model:             c.Model,
		Created:           c.Created,
		SystemFingerprint: c.SystemFingerprint,
		Position:          c.Position,
		TotalOutputs:      c.TotalOutputs,
		Usage:             usageToDTO(c.Usage),
		Citations:         c.Citations,
	}
	if len(c.Outputs) > 0 {
		dto.Outputs = make([]deltaDTO, len(c.Outputs))
		for i, d := range c.Outputs {
			dto.Outputs[i] = deltaDTO{
				Index:            d.Index,
				Role:             string(d.Role),
				Reasoning:        d.Reasoning,
				Content:          d.Content,
				EncryptedContent: d.EncryptedContent,
				ToolCalls:        toolCallsToDTO(d.ToolCalls),
				Citations:        citationsToDTO(d.Citations),
				FinishReason:     string(d.FinishReason),
			}
		}
	}
	return dto
}

func chunkFromDTO(dto chunkDTO) (chatstream.Chunk, error) {
	if dto.Version != version {
		return chatstream.Chunk{}, fmt.Errorf("unsupported chunk version: %d", dto.Version)
	}
	c := chatstream.Chunk{
		ID:                dto.ID,
		Model:             dto.Model,
		Created:           dto.Created,
		SystemFingerprint: dto.SystemFingerprint,
		Position:          dto.Position,
		TotalOutputs:      dto.TotalOutputs,
		Usage:             usageFromDTO(dto.Usage),
		Citations:         dto.Citations,
	}
	if len(dto.Outputs) > 0 {
		c.Outputs = make([]chatstream.OutputDelta, len(dto.Outputs))
		for i, d := range dto.Outputs {
			fr, err := chatstream.ParseFinishReason(d.FinishReason)
			if err != nil {
				return chatstream.Chunk{}, fmt.Errorf("output %d: %w", d.Index, err)
			}
			c.Outputs[i] = chatstream.OutputDelta{
				Index:            d.Index,
				Role:             chatstream.Role(d.Role),
				Reasoning:        d.Reasoning,
				Content:          d.Content,
				EncryptedContent: d.EncryptedContent,
				ToolCalls:        toolCallsFromDTO(d.ToolCalls),
				Citations:        citationsFromDTO(d.Citations),
				FinishReason:     fr,
			}
		}
	}
	return c, nil
}

func toolCallsToDTO(calls []chatstream.ToolCall) []toolCallDTO {
	if len(calls) == 0 {
		return nil
	}
	result := make([]toolCallDTO, len(calls))
	for i, tc := range calls {
		result[i] = toolCallDTO{
			ID:        tc.ID,
			Kind:      string(tc.Kind),
			Name:      tc.Name,
			Arguments: tc.Arguments,
			Status:    tc.Status,
		}
	}
	return result
}

func toolCallsFromDTO(dtos []toolCallDTO) []chatstream.ToolCall {
	if len(dtos) == 0 {
		return nil
	}
	result := make([]chatstream.ToolCall, len(dtos))
	for i, dto := range dtos {
		result[i] = chatstream.ToolCall{
			ID:        dto.ID,
			Kind:      chatstream.ToolCallKind(dto.Kind),
			Name:      dto.Name,
			Arguments: dto.Arguments,
			Status:    dto.Status,
		}
	}
	return result
}

func citationsToDTO(cits []chatstream.InlineCitation) []citationDTO {
	if len(cits) == 0 {
		return nil
	}
	result := make([]citationDTO, len(cits))
	for i, c := range cits {
		result[i] = citationDTO(c)
	}
	return result
}

func citationsFromDTO(dtos []citationDTO) []chatstream.InlineCitation {
	if len(dtos) == 0 {
		return nil
	}
	result := make([]chatstream.InlineCitation, len(dtos))
	for i, dto := range dtos {
		result[i] = chatstream.InlineCitation(dto)
	}
	return result
}

func usageToDTO(u *chatstream.Usage) *usageDTO {
	if u == nil {
		return nil
	}
	dto := usageDTO(*u)
	return &dto
}

func usageFromDTO(dto *usageDTO) *chatstream.Usage {
	if dto == nil {
		return nil
	}
	u := chatstream.Usage(*dto)
	return &u
}
