// Package history reconstructs conversation sessions from append-only agent
// logs. Records are kept in a flat uuid-indexed arena; parent links are
// resolved by lookup, never by pointer.
package history

import (
	"sessionvault/internal/types"
)

// Graph is the merged record set of one project directory.
type Graph struct {
	records   map[string]*types.ClassifiedRecord
	order     []string          // insertion order of uuids
	summaries map[string]string // leafUuid -> summary text
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		records:   make(map[string]*types.ClassifiedRecord),
		summaries: make(map[string]string),
	}
}

// Add inserts a classified record. Message and chain-link records are keyed
// by uuid (first occurrence wins); summaries are keyed by leafUuid (last
// occurrence wins). Unknown records are ignored.
func (g *Graph) Add(rec *types.ClassifiedRecord) {
	if rec == nil {
		return
	}
	switch rec.Kind {
	case types.RecordMessage:
		g.insert(rec.Message.UUID, rec)
	case types.RecordChainLink:
		g.insert(rec.ChainLink.UUID, rec)
	case types.RecordSummary:
		if rec.Summary.LeafUUID != "" {
			g.summaries[rec.Summary.LeafUUID] = rec.Summary.Summary
		}
	}
}

func (g *Graph) insert(uuid string, rec *types.ClassifiedRecord) {
	if _, exists := g.records[uuid]; exists {
		return
	}
	g.records[uuid] = rec
	g.order = append(g.order, uuid)
}

// Len returns the number of uuid-bearing records.
func (g *Graph) Len() int {
	return len(g.records)
}

// ResolveParent returns the nearest non-meta ancestor reachable from start.
func (g *Graph) ResolveParent(start string) *string {
	return ResolveParent(start, g.records)
}

// =============================================================================
// CHAIN RESOLUTION
// =============================================================================

// ResolveParent walks from start through parentUuid links, skipping meta
// records, and returns the first non-meta id. An id missing from records is
// returned as-is. A meta record with no parent yields nil. If the walk
// revisits an id, that id is returned.
func ResolveParent(start string, records map[string]*types.ClassifiedRecord) *string {
	visited := make(map[string]struct{})
	current := start
	for {
		if _, seen := visited[current]; seen {
			return strPtr(current)
		}
		visited[current] = struct{}{}

		rec, ok := records[current]
		if !ok || !rec.IsMeta() {
			return strPtr(current)
		}
		parent := parentOf(rec)
		if parent == nil {
			return nil
		}
		current = *parent
	}
}

// parentOf returns the hop-by-hop parent of a message or chain-link record.
func parentOf(rec *types.ClassifiedRecord) *string {
	switch rec.Kind {
	case types.RecordMessage:
		return rec.Message.ParentUUID
	case types.RecordChainLink:
		return rec.ChainLink.ParentUUID
	}
	return nil
}

func strPtr(s string) *string {
	return &s
}
