package query

import (
	"sort"
	"sync"
)

type TraceEventKind string

const (
	TraceEventConsideredChunkIDs TraceEventKind = "considered_chunk_ids"
	TraceEventUsedChunkIDs       TraceEventKind = "used_chunk_ids"
	TraceEventQueriedNodeIDs     TraceEventKind = "queried_node_ids"
	TraceEventQueriedEdgeIDs     TraceEventKind = "queried_edge_ids"
)

// TraceEvent is an extensible event envelope for query tracing.
// Additive changes to this struct are backward compatible for implementers.
type TraceEvent struct {
	Kind TraceEventKind
	IDs  []string
}

// Tracer is a sink for query tracing events.
//
// Implementers can forward events to logs, telemetry, or custom post-processing
// pipelines.
type Tracer interface {
	Record(event TraceEvent)
}

// MultiTracer fan-outs trace events to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event TraceEvent) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

func record(t Tracer, kind TraceEventKind, ids []string) {
	if t == nil || len(ids) == 0 {
		return
	}
	t.Record(TraceEvent{Kind: kind, IDs: ids})
}

func RecordConsideredChunkIDs(t Tracer, ids ...string) {
	record(t, TraceEventConsideredChunkIDs, ids)
}

func RecordUsedChunkIDs(t Tracer, ids ...string) {
	record(t, TraceEventUsedChunkIDs, ids)
}

func RecordQueriedNodeIDs(t Tracer, ids ...string) {
	record(t, TraceEventQueriedNodeIDs, ids)
}

func RecordQueriedEdgeIDs(t Tracer, ids ...string) {
	record(t, TraceEventQueriedEdgeIDs, ids)
}

// QueryTrace collects which nodes, edges and chunks were looked at and which
// chunks ended up in a context.
//
// QueryTrace is safe for concurrent use.
type QueryTrace struct {
	mu  sync.Mutex
	ids map[TraceEventKind]map[string]struct{}
}

type QueryTraceSnapshot struct {
	ConsideredChunkIDs []string `json:"considered_chunk_ids"`
	UsedChunkIDs       []string `json:"used_chunk_ids"`
	QueriedNodeIDs     []string `json:"queried_node_ids"`
	QueriedEdgeIDs     []string `json:"queried_edge_ids"`
}

func NewQueryTrace() *QueryTrace {
	return &QueryTrace{ids: make(map[TraceEventKind]map[string]struct{})}
}

func (t *QueryTrace) Record(event TraceEvent) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.ids[event.Kind]
	if !ok {
		set = make(map[string]struct{})
		t.ids[event.Kind] = set
	}
	for _, id := range event.IDs {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
}

func (t *QueryTrace) Snapshot() QueryTraceSnapshot {
	if t == nil {
		return QueryTraceSnapshot{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return QueryTraceSnapshot{
		ConsideredChunkIDs: sortedKeys(t.ids[TraceEventConsideredChunkIDs]),
		UsedChunkIDs:       sortedKeys(t.ids[TraceEventUsedChunkIDs]),
		QueriedNodeIDs:     sortedKeys(t.ids[TraceEventQueriedNodeIDs]),
		QueriedEdgeIDs:     sortedKeys(t.ids[TraceEventQueriedEdgeIDs]),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
