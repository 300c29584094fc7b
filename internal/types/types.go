// Package types provides shared type definitions for sessionvault.
// These types are used across history, session, mcpserver and store packages.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// CONTENT TYPES
// =============================================================================

// ContentBlock is one typed block of message content. Only text blocks are
// inspected; every other block is kept verbatim and re-emitted unchanged.
type ContentBlock struct {
	Type string
	Text string

	raw json.RawMessage
}

// NewTextBlock returns a text block with no original encoding.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// Raw returns the block exactly as it appeared in the log.
func (b ContentBlock) Raw() json.RawMessage {
	return b.raw
}

// UnmarshalJSON keeps the original bytes and lifts type/text.
func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	b.Type = head.Type
	b.Text = head.Text
	b.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits non-text blocks verbatim. Text blocks keep their other
// fields but carry the (possibly rewritten) Text.
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	if b.raw == nil {
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		}{b.Type, b.Text})
	}
	if b.Type != "text" {
		return b.raw, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b.raw, &fields); err != nil {
		return nil, fmt.Errorf("re-encode text block: %w", err)
	}
	text, err := json.Marshal(b.Text)
	if err != nil {
		return nil, err
	}
	fields["text"] = text
	return json.Marshal(fields)
}

// MessageContent is either a plain string or an ordered list of blocks.
type MessageContent struct {
	Text     string
	Blocks   []ContentBlock
	IsBlocks bool // payload used the block-list form
}

// UnmarshalJSON accepts a string, a block array, or null.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = MessageContent{}
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*c = MessageContent{Text: s}
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(trimmed, &blocks); err != nil {
		return fmt.Errorf("content is neither string nor block list: %w", err)
	}
	*c = MessageContent{Blocks: blocks, IsBlocks: true}
	return nil
}

// MarshalJSON mirrors the form the content was read in.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if !c.IsBlocks {
		return json.Marshal(c.Text)
	}
	if c.Blocks == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.Blocks)
}

// PlainText returns the string content, or all text blocks joined by newlines.
func (c MessageContent) PlainText() string {
	if !c.IsBlocks {
		return c.Text
	}
	var parts []string
	for _, b := range c.Blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// Message is a revived message record: timestamp parsed, user text cleaned,
// and ParentUUID replaced by the nearest non-meta ancestor.
type Message struct {
	UUID       string  `json:"uuid"`
	ParentUUID *string `json:"parentUuid"`
	SessionID  string  `json:"sessionId"`
	Type       string  `json:"type,omitempty"`

	Timestamp        time.Time `json:"timestamp"`
	RawTimestamp     string    `json:"rawTimestamp,omitempty"`
	TimestampInvalid bool      `json:"timestampInvalid,omitempty"` // Timestamp is the zero instant

	Role    string         `json:"role"`
	Content MessageContent `json:"content"`

	IsSidechain bool   `json:"isSidechain,omitempty"`
	Cwd         string `json:"cwd,omitempty"`
	GitBranch   string `json:"gitBranch,omitempty"`

	// Payload is the original message payload, untouched.
	Payload json.RawMessage `json:"-"`
}

// Text returns the message's plain text content.
func (m Message) Text() string {
	return m.Content.PlainText()
}

// =============================================================================
// SESSION TYPES
// =============================================================================

// Session is one reconstructed conversation, root-to-leaf.
type Session struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	Messages   []Message `json:"messages"`
	Timestamp  time.Time `json:"timestamp"` // last message
	CreatedAt  time.Time `json:"createdAt"` // first message
	LeafUUID   string    `json:"leafUuid"`
	ProjectDir string    `json:"projectDir,omitempty"`
	Cwd        string    `json:"cwd,omitempty"`
	GitBranch  string    `json:"gitBranch,omitempty"`

	// Truncated is set when the root message points at a parent that is not
	// present in the directory, i.e. older history is missing.
	Truncated bool `json:"truncated,omitempty"`
}

// MessageCount returns len(Messages).
func (s Session) MessageCount() int {
	return len(s.Messages)
}
