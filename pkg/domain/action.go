package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Action is a request for a state change, dispatched to a Document.
// It is built by the caller immediately before dispatch and discarded after.
type Action struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// NewAction builds an Action value.
func NewAction(actionType string, payload any) Action {
	return Action{
		Type:    actionType,
		Payload: payload,
	}
}

// DecodePayload converts an opaque payload (typically a map decoded from
// JSON) into T. Conversion is weakly typed and uses `json` tag names, so the
// same struct serves the wire format and the handler.
// It does not validate: unknown keys are ignored and missing keys stay zero.
func DecodePayload[T any](payload any) (T, error) {
	var out T
	if payload == nil {
		return out, nil
	}
	if typed, ok := payload.(T); ok {
		return typed, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, fmt.Errorf("failed to build payload decoder: %w", err)
	}
	if err := decoder.Decode(payload); err != nil {
		return out, fmt.Errorf("failed to decode payload: %w", err)
	}
	return out, nil
}
