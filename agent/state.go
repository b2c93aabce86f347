package agent

import (
	"encoding/json"
	"time"
)

// Message is one entry in a conversation history
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// ConversationState is the working state of one internal session: the
// key/value agent state plus the message history. Checkpoints snapshot it
// through the serializer; storage treats the blob as opaque.
type ConversationState struct {
	State   map[string]any `json:"state"`
	History []Message      `json:"history"`
}

// NewConversationState creates an empty conversation state
func NewConversationState() *ConversationState {
	return &ConversationState{State: map[string]any{}}
}

// AddMessage appends a message to the history
func (c *ConversationState) AddMessage(role, content string) {
	c.History = append(c.History, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// UpdateState merges updates into the agent state
func (c *ConversationState) UpdateState(updates map[string]any) {
	if c.State == nil {
		c.State = map[string]any{}
	}
	for k, v := range updates {
		c.State[k] = v
	}
}

// JSONSerializer implements ports.StateSerializer with encoding/json. The
// default collaborator; callers with other formats supply their own.
type JSONSerializer struct{}

// Serialize encodes conversation state as JSON
func (JSONSerializer) Serialize(state any) ([]byte, error) {
	return json.Marshal(state)
}

// Deserialize decodes a snapshot blob
func (JSONSerializer) Deserialize(blob []byte, into any) error {
	if len(blob) == 0 {
		return nil
	}
	return json.Unmarshal(blob, into)
}
