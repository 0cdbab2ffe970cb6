package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Message types exchanged with the preview frame.
const (
	TypeOpen       = "open"
	TypeClose      = "close"
	TypeIsEditMode = "isEditMode"
	TypeUpdateData = "updateData"
	TypeEditMode   = "tina:editMode"
)

// ErrInvalidMessage is returned for inbound messages that fail validation.
// Nothing of an invalid message is applied.
var ErrInvalidMessage = errors.New("bridge: invalid message")

// Message is an inbound message from the preview frame.
type Message struct {
	Type      string         `json:"type"`
	ID        string         `json:"id,omitempty"`
	Query     string         `json:"query,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Outbound is a message posted to the preview frame.
type Outbound struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Data any    `json:"data,omitempty"`
}

var messageSchemas = map[string]*gojsonschema.Schema{
	TypeOpen: mustCompile(`{
  "type": "object",
  "required": ["id", "query", "variables", "data"],
  "properties": {
    "id": {"type": "string"},
    "query": {"type": "string"},
    "variables": {"type": "object"},
    "data": {"type": "object"}
  }
}`),
	TypeClose: mustCompile(`{
  "type": "object",
  "required": ["id"],
  "properties": {"id": {"type": "string"}}
}`),
}

var envelopeSchema = mustCompile(`{
  "type": "object",
  "required": ["type"],
  "properties": {"type": {"type": "string"}}
}`)

func mustCompile(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("bridge: invalid message schema: %v", err))
	}
	return s
}

// ParseMessage validates raw and decodes it. Message types without a schema
// are only checked for a string type.
func ParseMessage(raw []byte) (Message, error) {
	var msg Message
	loader := gojsonschema.NewBytesLoader(raw)
	if err := validate(envelopeSchema, loader); err != nil {
		return msg, err
	}
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if s := messageSchemas[env.Type]; s != nil {
		if err := validate(s, loader); err != nil {
			return msg, err
		}
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return msg, nil
}

func validate(s *gojsonschema.Schema, doc gojsonschema.JSONLoader) error {
	result, err := s.Validate(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidMessage, strings.Join(msgs, "; "))
}
