package history

import (
	"sort"

	"sessionvault/internal/types"
)

// Dedup keeps one session per id: the one with the most messages. On a tie
// the first one seen survives. Forked tool-call branches leave several leaves
// for what is one conversation; the longest branch is the complete one.
func Dedup(sessions []types.Session) []types.Session {
	index := make(map[string]int, len(sessions))
	out := make([]types.Session, 0, len(sessions))
	for _, s := range sessions {
		if i, ok := index[s.ID]; ok {
			if len(s.Messages) > len(out[i].Messages) {
				out[i] = s
			}
			continue
		}
		index[s.ID] = len(out)
		out = append(out, s)
	}
	return out
}

// SortSessions orders sessions most recent first, ties by id.
func SortSessions(sessions []types.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID < b.ID
	})
}
