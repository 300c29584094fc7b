package history

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"sessionvault/internal/types"
)

// FallbackLabel is used when a session has neither a summary nor user text.
const FallbackLabel = "Untitled session"

// labelMaxRunes bounds labels derived from the first user message.
const labelMaxRunes = 50

// Assemble produces one session per leaf of the graph. A leaf is a message
// never referenced as another message's effective parent. Sessions come
// back in leaf order (record insertion order), not deduplicated.
func Assemble(g *Graph, logger *zap.Logger) []types.Session {
	if logger == nil {
		logger = zap.NewNop()
	}

	revived := make(map[string]*types.Message)
	var order []string
	for _, uuid := range g.order {
		rec := g.records[uuid]
		if rec.Kind != types.RecordMessage || rec.Message.IsMeta {
			continue
		}
		var parent *string
		if rec.Message.ParentUUID != nil {
			parent = g.ResolveParent(*rec.Message.ParentUUID)
		}
		msg, err := types.ReviveMessage(rec.Message, parent)
		if err != nil {
			logger.Debug("Message payload not decodable",
				zap.String("uuid", uuid),
				zap.Error(err))
		}
		revived[uuid] = &msg
		order = append(order, uuid)
	}

	referenced := make(map[string]struct{}, len(order))
	for _, uuid := range order {
		if p := revived[uuid].ParentUUID; p != nil && *p != uuid {
			referenced[*p] = struct{}{}
		}
	}

	summaries := g.effectiveSummaries()

	var sessions []types.Session
	for _, uuid := range order {
		if _, isParent := referenced[uuid]; isParent {
			continue
		}
		if s, ok := buildSession(uuid, revived, summaries); ok {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

// effectiveSummaries re-keys summaries by the nearest non-meta record of
// their leafUuid, so a summary pointing at a chain-link still labels the
// branch it closes.
func (g *Graph) effectiveSummaries() map[string]string {
	leaves := make([]string, 0, len(g.summaries))
	for leaf := range g.summaries {
		leaves = append(leaves, leaf)
	}
	sort.Strings(leaves)

	out := make(map[string]string, len(g.summaries))
	for _, leaf := range leaves {
		text := g.summaries[leaf]
		target := g.ResolveParent(leaf)
		if target == nil {
			continue
		}
		if _, taken := out[*target]; taken && *target != leaf {
			continue
		}
		out[*target] = text
	}
	return out
}

// buildSession walks from leaf back to the root via effective parents.
func buildSession(leaf string, revived map[string]*types.Message, summaries map[string]string) (types.Session, bool) {
	leafMsg, ok := revived[leaf]
	if !ok {
		return types.Session{}, false
	}

	var (
		chain   []types.Message
		summary string
		visited = make(map[string]struct{})
		current = leaf
	)
	for {
		if _, seen := visited[current]; seen {
			break
		}
		visited[current] = struct{}{}

		if summary == "" && strings.TrimSpace(summaries[current]) != "" {
			summary = summaries[current]
		}
		msg, ok := revived[current]
		if !ok {
			break
		}
		chain = append(chain, *msg)
		if msg.ParentUUID == nil {
			break
		}
		current = *msg.ParentUUID
	}
	if len(chain) == 0 {
		return types.Session{}, false
	}

	// Walk collected leaf-first; flip to root-first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	root := chain[0]
	truncated := false
	if root.ParentUUID != nil {
		_, known := revived[*root.ParentUUID]
		truncated = !known
	}

	return types.Session{
		ID:        leafMsg.SessionID,
		Label:     deriveLabel(summary, chain),
		Messages:  chain,
		Timestamp: chain[len(chain)-1].Timestamp,
		CreatedAt: root.Timestamp,
		LeafUUID:  leaf,
		Cwd:       leafMsg.Cwd,
		GitBranch: leafMsg.GitBranch,
		Truncated: truncated,
	}, true
}

// =============================================================================
// LABELS
// =============================================================================

// deriveLabel prefers the branch summary, then the first line of the first
// user message with text, then FallbackLabel.
func deriveLabel(summary string, messages []types.Message) string {
	if s := strings.TrimSpace(summary); s != "" {
		return s
	}
	for _, m := range messages {
		if m.Role != types.RoleUser {
			continue
		}
		if line := firstNonEmptyLine(m.Text()); line != "" {
			return truncateLabel(line)
		}
	}
	return FallbackLabel
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func truncateLabel(s string) string {
	runes := []rune(s)
	if len(runes) <= labelMaxRunes {
		return s
	}
	return string(runes[:labelMaxRunes]) + "…"
}
