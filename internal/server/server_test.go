package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/graphrag/internal/queue"
	mid "github.com/OFFIS-RIT/graphrag/internal/server/middleware"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/graph"
	"github.com/OFFIS-RIT/graphrag/pkg/query"

	"github.com/rabbitmq/amqp091-go"
)

const masterKey = "secret"

type fakeGraph struct {
	lastParams query.Params
	lastInput  string
	ingested   []string
}

func (f *fakeGraph) Extract(ctx context.Context, text string, entityTypes []string) (*common.Extraction, error) {
	if strings.TrimSpace(text) == "nothing" {
		return nil, nil
	}
	x := common.NewExtraction()
	x.AddNode(common.NewNode("Barack Obama", "PERSON", "A politician."))
	x.AddNode(common.NewNode("Hawaii", "LOCATION", "A US state."))
	x.AddEdge(common.NewEdge("Barack Obama", "Hawaii", "", "Born in Hawaii.", []string{"birthplace"}, 1))
	x.Keywords = []string{"biography"}
	return x, nil
}

func (f *fakeGraph) ExtractJSON(ctx context.Context, text string, entityTypes []string) (*graph.JSONExtraction, error) {
	return &graph.JSONExtraction{
		Entities: []graph.JSONEntity{{Name: "Barack Obama", Type: "PERSON", Description: "A politician."}},
		Keywords: []string{"biography"},
	}, nil
}

func (f *fakeGraph) Ingest(ctx context.Context, source, text string, metadata map[string]string, entityTypes []string) (*common.Graph, error) {
	f.ingested = append(f.ingested, source)
	return &common.Graph{}, nil
}

func (f *fakeGraph) Augment(ctx context.Context, input string, p query.Params) (*common.Context, error) {
	f.lastInput = input
	f.lastParams = p
	if p.Mode == query.ModeKeywords {
		if _, err := query.ParseKeywords(input); err != nil {
			return nil, err
		}
	}
	if input == "unknown" {
		return nil, nil
	}
	return &common.Context{Input: input}, nil
}

func (f *fakeGraph) Stats(ctx context.Context) (graph.Stats, error) {
	return graph.Stats{Nodes: 3, Edges: 2, Chunks: 1}, nil
}

type fakeQueue struct {
	published []string
}

func (q *fakeQueue) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	return amqp091.Queue{Name: name}, nil
}

func (q *fakeQueue) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	q.published = append(q.published, key+" "+string(msg.Body))
	return nil
}

func do(t *testing.T, app *mid.App, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := New(app)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	rec, _ := do(t, &mid.App{}, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("GET /health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestAuth(t *testing.T) {
	app := &mid.App{Graph: &fakeGraph{}, MasterAPIKey: masterKey}
	tests := []struct {
		name  string
		token string
		want  int
	}{
		{name: "missing token", token: "", want: http.StatusUnauthorized},
		{name: "wrong key without jwks", token: "nope", want: http.StatusUnauthorized},
		{name: "master key", token: masterKey, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, app, http.MethodGet, "/api/stats", tt.token, "")
			if rec.Code != tt.want {
				t.Fatalf("GET /api/stats = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestExtractRoute(t *testing.T) {
	app := &mid.App{Graph: &fakeGraph{}, MasterAPIKey: masterKey}

	rec, out := do(t, app, http.MethodPost, "/api/extract", masterKey, `{"text":"Barack Obama was born in Hawaii."}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/extract = %d %s", rec.Code, rec.Body.String())
	}
	nodes, _ := out["nodes"].([]any)
	edges, _ := out["edges"].([]any)
	if len(nodes) != 2 || len(edges) != 1 {
		t.Fatalf("extract response = %v", out)
	}
	edge := edges[0].(map[string]any)
	if edge["source"] != "Barack Obama" || edge["target"] != "Hawaii" || edge["source_id"] == "" {
		t.Fatalf("edge = %v", edge)
	}

	rec, out = do(t, app, http.MethodPost, "/api/extract", masterKey, `{"text":"nothing"}`)
	if rec.Code != http.StatusOK || out["message"] != "Nothing extracted" {
		t.Fatalf("POST /api/extract (empty) = %d %v", rec.Code, out)
	}

	rec, _ = do(t, app, http.MethodPost, "/api/extract", masterKey, `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("POST /api/extract without text = %d, want 400", rec.Code)
	}
}

func TestExtractJSONRoute(t *testing.T) {
	app := &mid.App{Graph: &fakeGraph{}, MasterAPIKey: masterKey}
	rec, out := do(t, app, http.MethodPost, "/api/extract/json", masterKey, `{"text":"Barack Obama was born in Hawaii."}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/extract/json = %d %s", rec.Code, rec.Body.String())
	}
	if entities, _ := out["entities"].([]any); len(entities) != 1 || out["keywords"] == nil {
		t.Fatalf("extract json response = %v", out)
	}
}

func TestIngestRoute(t *testing.T) {
	g := &fakeGraph{}
	q := &fakeQueue{}
	app := &mid.App{Graph: g, MasterAPIKey: masterKey}

	rec, _ := do(t, app, http.MethodPost, "/api/ingest", masterKey, `{"source":"bio.txt","text":"Barack Obama was born in Hawaii."}`)
	if rec.Code != http.StatusOK || len(g.ingested) != 1 || g.ingested[0] != "bio.txt" {
		t.Fatalf("POST /api/ingest = %d, ingested %v", rec.Code, g.ingested)
	}

	rec, _ = do(t, app, http.MethodPost, "/api/ingest", masterKey, `{"source":"bio.txt","document_key":"docs/bio.txt","async":true}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("async ingest without queue = %d, want 503", rec.Code)
	}

	rec, _ = do(t, app, http.MethodPost, "/api/ingest", masterKey, `{"source":"bio.txt","document_key":"docs/bio.txt"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("sync ingest by key = %d, want 400", rec.Code)
	}

	app.Queue = q
	rec, _ = do(t, app, http.MethodPost, "/api/ingest", masterKey, `{"source":"bio.txt","document_key":"docs/bio.txt","async":true}`)
	if rec.Code != http.StatusAccepted || len(q.published) != 1 {
		t.Fatalf("async ingest = %d, published %v", rec.Code, q.published)
	}
	if !strings.HasPrefix(q.published[0], queue.IngestQueue+" ") || !strings.Contains(q.published[0], `"document_key":"docs/bio.txt"`) {
		t.Fatalf("published = %q", q.published[0])
	}
}

func TestAugmentRoute(t *testing.T) {
	g := &fakeGraph{}
	app := &mid.App{Graph: g, MasterAPIKey: masterKey}

	rec, out := do(t, app, http.MethodPost, "/api/augment", masterKey, `{"input":"Where was Obama born?","mode":"local","top_k":5}`)
	if rec.Code != http.StatusOK || out["context"] == nil {
		t.Fatalf("POST /api/augment = %d %v", rec.Code, out)
	}
	if g.lastParams.Mode != query.ModeLocal || g.lastParams.TopK != 5 || g.lastParams.ChunkTopK != query.DefaultParams().ChunkTopK {
		t.Fatalf("params = %+v", g.lastParams)
	}

	rec, out = do(t, app, http.MethodPost, "/api/augment", masterKey, `{"input":"unknown"}`)
	if rec.Code != http.StatusOK || out["context"] != nil || g.lastParams.Mode != query.ModeHybrid {
		t.Fatalf("POST /api/augment (no context) = %d %v", rec.Code, out)
	}

	rec, _ = do(t, app, http.MethodPost, "/api/augment", masterKey, `{"input":" , , ","mode":"keywords"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty keywords = %d, want 400", rec.Code)
	}

	rec, _ = do(t, app, http.MethodPost, "/api/augment", masterKey, `{"input":"x","mode":"telepathy"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown mode = %d, want 400", rec.Code)
	}
}

func TestStatsRoute(t *testing.T) {
	app := &mid.App{Graph: &fakeGraph{}, MasterAPIKey: masterKey}
	rec, out := do(t, app, http.MethodGet, "/api/stats", masterKey, "")
	if rec.Code != http.StatusOK || out["nodes"] != float64(3) || out["edges"] != float64(2) || out["chunks"] != float64(1) {
		t.Fatalf("GET /api/stats = %d %v", rec.Code, out)
	}
}
