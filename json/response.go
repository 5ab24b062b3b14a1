package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fwojciec/chatstream"
)

// responseDTO is the v1 JSON representation of an assembled response.
type responseDTO struct {
	Version           int         `json:"version"`
	ID                string      `json:"id,omitempty"`
	Model             string      `json:"model,omitempty"`
	Created           time.Time   `json:"created,omitzero"`
	SystemFingerprint string      `json:"system_fingerprint,omitempty"`
	Outputs           []outputDTO `json:"outputs"`
	Usage             *usageDTO   `json:"usage,omitempty"`
	Citations         []string    `json:"citations,omitempty"`
}

type outputDTO struct {
	Index            int           `json:"index"`
	Role             string        `json:"role,omitempty"`
	Reasoning        string        `json:"reasoning,omitempty"`
	Content          string        `json:"content"`
	EncryptedContent string        `json:"encrypted_content,omitempty"`
	ToolCalls        []toolCallDTO `json:"tool_calls,omitempty"`
	Citations        []citationDTO `json:"citations,omitempty"`
	FinishReason     string        `json:"finish_reason,omitempty"`
}

// MarshalResponse serializes an assembled Response to indented JSON.
func MarshalResponse(r *chatstream.Response) ([]byte, error) {
	if r == nil {
		return nil, errors.New("marshal response: nil response")
	}
	dto := responseDTO{
		Version:           version,
		ID:                r.ID,
		Model:             r.Model,
		Created:           r.Created,
		SystemFingerprint: r.SystemFingerprint,
		Outputs:           make([]outputDTO, len(r.Outputs)),
		Usage:             usageToDTO(r.Usage),
		Citations:         r.Citations,
	}
	for i, o := range r.Outputs {
		dto.Outputs[i] = outputDTO{
			Index:            o.Index,
			Role:             string(o.Role),
			Reasoning:        o.Reasoning,
			Content:          o.Content,
			EncryptedContent: o.EncryptedContent,
			ToolCalls:        toolCallsToDTO(o.ToolCalls),
			Citations:        citationsToDTO(o.Citations),
			FinishReason:     string(o.FinishReason),
		}
	}
	return json.MarshalIndent(dto, "", "  ")
}

// UnmarshalResponse deserializes a Response written by MarshalResponse.
func UnmarshalResponse(data []byte) (*chatstream.Response, error) {
	var dto responseDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if dto.Version != version {
		return nil, fmt.Errorf("unsupported response version: %d", dto.Version)
	}
	r := &chatstream.Response{
		ID:                dto.ID,
		Model:             dto.Model,
		Created:           dto.Created,
		SystemFingerprint: dto.SystemFingerprint,
		Outputs:           make([]chatstream.Output, len(dto.Outputs)),
		Usage:             usageFromDTO(dto.Usage),
		Citations:         dto.Citations,
	}
	for i, o := range dto.Outputs {
		fr, err := chatstream.ParseFinishReason(o.FinishReason)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", o.Index, err)
		}
		r.Outputs[i] = chatstream.Output{
			Index:            o.Index,
			Role:             chatstream.Role(o.Role),
			Reasoning:        o.Reasoning,
			Content:          o.Content,
			EncryptedContent: o.EncryptedContent,
			ToolCalls:        toolCallsFromDTO(o.ToolCalls),
			Citations:        citationsFromDTO(o.Citations),
			FinishReason:     fr,
		}
	}
	return r, nil
}
