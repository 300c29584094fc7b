// Package types provides record classification using the Discriminated Union pattern.
// Unlike the agent's own `type` field, the tag here is decided structurally:
// which keys a record carries determines how it participates in the chain.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// =============================================================================
// RECORD CLASSIFIER
// =============================================================================

// RecordKind is the classified shape of a log record.
type RecordKind int

const (
	RecordUnknown RecordKind = iota
	RecordMessage
	RecordChainLink
	RecordSummary
)

// String returns a human-readable name for the record kind.
func (k RecordKind) String() string {
	switch k {
	case RecordMessage:
		return "message"
	case RecordChainLink:
		return "chain-link"
	case RecordSummary:
		return "summary"
	default:
		return "unknown"
	}
}

// ErrEmptyLine is returned for blank lines.
var ErrEmptyLine = errors.New("empty line")

var errInvalidJSON = errors.New("invalid JSON")

// authErrorMarkers are summary prefixes produced when the agent failed to
// authenticate. Such summaries are not useful as labels.
var authErrorMarkers = []string{
	"invalid api key",
	"api error: 401",
	"please run /login",
	"oauth token has expired",
	"authentication_error",
}

// ClassifiedRecord holds one parsed record with its kind.
// Only ONE of the record pointers is non-nil, matching Kind.
type ClassifiedRecord struct {
	Kind RecordKind
	Raw  json.RawMessage

	Message   *MessageRecord
	ChainLink *ChainLinkRecord
	Summary   *SummaryRecord
}

// IsMeta reports whether the record only serves to keep a chain connected.
func (c *ClassifiedRecord) IsMeta() bool {
	switch c.Kind {
	case RecordChainLink:
		return true
	case RecordMessage:
		return c.Message.IsMeta
	}
	return false
}

// ClassifyRecord parses one log line. It returns an error only when the
// line is not a JSON object or a recognised shape fails to decode; records
// of unknown shape come back as RecordUnknown.
func ClassifyRecord(line []byte) (*ClassifiedRecord, error) {
	if len(strings.TrimSpace(string(line))) == 0 {
		return nil, ErrEmptyLine
	}
	if !gjson.ValidBytes(line) {
		return nil, errInvalidJSON
	}
	root := gjson.ParseBytes(line)
	if !root.IsObject() {
		return nil, fmt.Errorf("record is %s, not an object", root.Type)
	}

	result := &ClassifiedRecord{Raw: append(json.RawMessage(nil), line...)}

	uuid := root.Get("uuid")
	hasUUID := uuid.Type == gjson.String && uuid.Str != ""
	message := root.Get("message")
	hasMessage := message.Exists() && message.Type != gjson.Null

	switch {
	case hasUUID && hasMessage:
		var rec MessageRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse message record: %w", err)
		}
		rec.IsMeta = root.Get("isMeta").Bool()
		result.Kind = RecordMessage
		result.Message = &rec

	case hasUUID && root.Get("parentUuid").Exists():
		var rec ChainLinkRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse chain-link record: %w", err)
		}
		result.Kind = RecordChainLink
		result.ChainLink = &rec

	case root.Get("summary").Exists():
		summary := root.Get("summary").String()
		if IsAuthErrorSummary(summary) {
			result.Kind = RecordUnknown
			return result, nil
		}
		result.Kind = RecordSummary
		result.Summary = &SummaryRecord{
			Summary:  summary,
			LeafUUID: root.Get("leafUuid").String(),
		}

	default:
		result.Kind = RecordUnknown
	}

	return result, nil
}

// IsAuthErrorSummary reports whether a summary starts with a transient
// authentication failure marker (case-insensitive).
func IsAuthErrorSummary(summary string) bool {
	lower := strings.ToLower(strings.TrimSpace(summary))
	for _, marker := range authErrorMarkers {
		if strings.HasPrefix(lower, marker) {
			return true
		}
	}
	return false
}
