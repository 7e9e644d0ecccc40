package analytics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCluster struct {
	mu      sync.Mutex
	indexed map[string]Event
	paths   []string
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	f.mu.Lock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	switch {
	case r.Method == http.MethodHead && r.URL.Path == "/":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/portal-events/_doc/"):
		body, _ := io.ReadAll(r.Body)
		var ev Event
		_ = json.Unmarshal(body, &ev)
		f.mu.Lock()
		f.indexed[strings.TrimPrefix(r.URL.Path, "/portal-events/_doc/")] = ev
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestTransport(t *testing.T) (*ElasticsearchTransport, *fakeCluster) {
	cluster := &fakeCluster{indexed: map[string]Event{}}
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewElasticsearchTransport(client, "portal-events"), cluster
}

func TestElasticsearchTransport_InitAndSend(t *testing.T) {
	ctx := context.Background()
	tr, cluster := newTestTransport(t)

	require.NoError(t, tr.Init(ctx))

	ev := Event{ID: "evt-1", Name: "form_submit", Params: map[string]interface{}{"form_name": "standard_application"}, Timestamp: time.Now().UTC()}
	require.NoError(t, tr.Send(ctx, ev))

	cluster.mu.Lock()
	defer cluster.mu.Unlock()
	stored, ok := cluster.indexed["evt-1"]
	require.True(t, ok)
	assert.Equal(t, "form_submit", stored.Name)
	assert.Equal(t, "standard_application", stored.Params["form_name"])
}

func TestElasticsearchTransport_OptOutDropsEvents(t *testing.T) {
	ctx := context.Background()
	tr, cluster := newTestTransport(t)

	tr.SetOptOut(true)
	require.NoError(t, tr.Send(ctx, Event{ID: "evt-2", Name: "page_view"}))

	tr.SetOptOut(false)
	require.NoError(t, tr.Send(ctx, Event{ID: "evt-3", Name: "page_view"}))

	cluster.mu.Lock()
	defer cluster.mu.Unlock()
	assert.NotContains(t, cluster.indexed, "evt-2")
	assert.Contains(t, cluster.indexed, "evt-3")
}

func TestNopTransport(t *testing.T) {
	var tr Transport = NopTransport{}
	assert.NoError(t, tr.Init(context.Background()))
	assert.NoError(t, tr.Send(context.Background(), Event{}))
}
