// Package types provides the record model for agent conversation logs.
// Each log line is one independently parseable JSON record; records link to
// each other through uuid/parentUuid rather than by position in the file.
package types

import "encoding/json"

// =============================================================================
// RECORD TYPE CONSTANTS
// =============================================================================

// Record type discriminators written by the agent. Classification ignores
// them (see ClassifyRecord); revival falls back on them for the role.
const (
	RecordTypeUser      = "user"
	RecordTypeAssistant = "assistant"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// =============================================================================
// MESSAGE RECORD
// =============================================================================

// MessageRecord is a record with a uuid and a message payload.
type MessageRecord struct {
	Type        string  `json:"type,omitempty"`
	UUID        string  `json:"uuid"`
	ParentUUID  *string `json:"parentUuid"`
	SessionID   string  `json:"sessionId,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
	IsSidechain bool    `json:"isSidechain,omitempty"`
	Cwd         string  `json:"cwd,omitempty"`
	GitBranch   string  `json:"gitBranch,omitempty"`
	Version     string  `json:"version,omitempty"`

	// IsMeta is hoisted out of the raw record by the classifier.
	IsMeta bool `json:"-"`

	// Message is the opaque payload ({role, content, ...}). It is never
	// rewritten; revival works on a decoded copy.
	Message json.RawMessage `json:"message"`
}

// =============================================================================
// CHAIN-LINK RECORD
// =============================================================================

// ChainLinkRecord carries only uuid/parentUuid. It exists to keep parent
// chains connected and is always meta.
type ChainLinkRecord struct {
	UUID       string  `json:"uuid"`
	ParentUUID *string `json:"parentUuid"`
}

// =============================================================================
// SUMMARY RECORD
// =============================================================================

// SummaryRecord labels the branch whose tip is LeafUUID.
type SummaryRecord struct {
	Summary  string `json:"summary"`
	LeafUUID string `json:"leafUuid"`
}

// =============================================================================
// MESSAGE PAYLOAD
// =============================================================================

// MessageBody is the decoded role/content view of a MessageRecord payload.
type MessageBody struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}
