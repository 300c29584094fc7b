// Package types provides revival of message records into displayable Messages.
package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// systemReminderPattern matches reminder blocks the agent injects into
	// user turns.
	systemReminderPattern = regexp.MustCompile(`(?s)<system-reminder>.*?</system-reminder>`)

	// commandMessagePattern captures the slash command name of a command turn.
	commandMessagePattern = regexp.MustCompile(`(?s)<command-message>(.*?)</command-message>`)

	// commandTagPattern matches any command wrapper tag, open or close.
	commandTagPattern = regexp.MustCompile(`</?command-(?:name|message|args)>`)

	// imageRefPattern matches duplicate image reference text next to a real image block.
	imageRefPattern = regexp.MustCompile(`^\s*\[Image: source: [^\]]+\]\s*$`)
)

// =============================================================================
// MAIN REVIVAL ENTRY POINT
// =============================================================================

// ReviveMessage converts a message record into a Message whose ParentUUID is
// the given effective parent. A payload that cannot be decoded still yields
// a Message (empty role/content); the decode error is returned alongside it.
func ReviveMessage(rec *MessageRecord, effectiveParent *string) (Message, error) {
	msg := Message{
		UUID:         rec.UUID,
		ParentUUID:   effectiveParent,
		SessionID:    rec.SessionID,
		Type:         rec.Type,
		RawTimestamp: rec.Timestamp,
		IsSidechain:  rec.IsSidechain,
		Cwd:          rec.Cwd,
		GitBranch:    rec.GitBranch,
		Payload:      rec.Message,
	}
	msg.Timestamp, msg.TimestampInvalid = ParseTimestamp(rec.Timestamp)

	var body MessageBody
	var decodeErr error
	if err := json.Unmarshal(rec.Message, &body); err != nil {
		decodeErr = fmt.Errorf("decode message %s: %w", rec.UUID, err)
	} else {
		msg.Role = body.Role
		msg.Content = body.Content
	}
	if msg.Role == "" && (rec.Type == RecordTypeUser || rec.Type == RecordTypeAssistant) {
		msg.Role = rec.Type
	}

	if msg.Role == RoleUser {
		msg.Content = cleanUserContent(msg.Content)
	}
	return msg, decodeErr
}

// ParseTimestamp parses an ISO-8601 timestamp. On failure it returns the
// zero instant and invalid=true rather than substituting the current time.
func ParseTimestamp(ts string) (t time.Time, invalid bool) {
	if ts == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, true
	}
	return t, false
}

// =============================================================================
// USER CONTENT CLEANUP
// =============================================================================

// cleanUserContent strips reminder blocks and normalizes command wrappers in
// text content. Text blocks left empty are dropped; other blocks pass through.
func cleanUserContent(content MessageContent) MessageContent {
	if !content.IsBlocks {
		content.Text = CleanUserText(content.Text)
		return content
	}

	hasImage := false
	for _, block := range content.Blocks {
		if block.Type == "image" {
			hasImage = true
			break
		}
	}

	cleaned := make([]ContentBlock, 0, len(content.Blocks))
	for _, block := range content.Blocks {
		if block.Type != "text" {
			cleaned = append(cleaned, block)
			continue
		}
		if hasImage && imageRefPattern.MatchString(block.Text) {
			continue
		}
		block.Text = CleanUserText(block.Text)
		if block.Text == "" {
			continue
		}
		cleaned = append(cleaned, block)
	}
	content.Blocks = cleaned
	return content
}

// CleanUserText removes <system-reminder> blocks and rewrites command turns.
// Text carrying a <command-message> becomes "/" + its content; otherwise any
// command wrapper tags are removed in place.
func CleanUserText(text string) string {
	if systemReminderPattern.MatchString(text) {
		text = strings.TrimSpace(systemReminderPattern.ReplaceAllString(text, ""))
	}

	if m := commandMessagePattern.FindStringSubmatch(text); m != nil {
		return "/" + strings.TrimPrefix(strings.TrimSpace(m[1]), "/")
	}
	if commandTagPattern.MatchString(text) {
		text = commandTagPattern.ReplaceAllString(text, "")
	}
	return text
}
