package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"blockhost-portal/internal/common/config"
	commonerrors "blockhost-portal/internal/common/errors"
	"blockhost-portal/internal/common/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	appKey    = "ptla_application"
	clientKey = "ptlc_client"
)

func serverJSON(id int, identifier string, user int) string {
	return fmt.Sprintf(`{"object":"server","attributes":{"id":%d,"uuid":"%s-0000-4000-8000-000000000000","identifier":"%s","name":"srv-%s","user":%d,"limits":{"memory":4096,"disk":20000,"cpu":200},"container":{"image":"java:17"}}}`,
		id, identifier, identifier, identifier, user)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg config.PanelConfig) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	if cfg.Timeout == 0 {
		cfg.Timeout = 2000
	}
	return NewClient(cfg, observability.NewNoop())
}

func TestClient_ListServersFollowsPagination(t *testing.T) {
	var pages []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/application/servers", r.URL.Path)
		assert.Equal(t, "Bearer "+appKey, r.Header.Get("Authorization"))
		page := r.URL.Query().Get("page")
		pages = append(pages, page)

		var item string
		if page == "1" {
			item = serverJSON(1, "aaaa1111", 7)
		} else {
			item = serverJSON(2, "bbbb2222", 9)
		}
		fmt.Fprintf(w, `{"object":"list","data":[%s],"meta":{"pagination":{"total":2,"count":1,"per_page":1,"current_page":%s,"total_pages":2}}}`, item, page)
	}, config.PanelConfig{ApplicationKey: appKey})

	servers, err := c.ListServers(context.Background())
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, []string{"1", "2"}, pages)
	assert.Equal(t, "aaaa1111", servers[0].Attributes.Identifier)
	assert.Equal(t, 9, servers[1].Attributes.User)
}

func TestServerListItem_PassesThroughUnknownFields(t *testing.T) {
	var item ServerListItem
	require.NoError(t, json.Unmarshal([]byte(serverJSON(3, "cccc3333", 5)), &item))

	out, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"container":{"image":"java:17"}`)

	assert.True(t, item.Matches("cccc3333"))
	assert.True(t, item.Matches("cccc3333-0000-4000-8000-000000000000"))
	assert.True(t, item.Matches("3"))
	assert.False(t, item.Matches(""))
	assert.True(t, item.OwnedBy(5))
	assert.False(t, item.OwnedBy(6))
}

func TestClient_ServerResources(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/client/servers/aaaa1111/resources", r.URL.Path)
		assert.Equal(t, "Bearer "+clientKey, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"object":"stats","attributes":{"current_state":"running","is_suspended":false,"resources":{"memory_bytes":1073741824,"cpu_absolute":37.5,"disk_bytes":5368709120,"network_rx_bytes":1000,"network_tx_bytes":2000,"uptime":3600000}}}`))
	}, config.PanelConfig{ApplicationKey: appKey, ClientKey: clientKey})

	res, err := c.ServerResources(context.Background(), "aaaa1111")
	require.NoError(t, err)
	assert.Equal(t, "running", res.CurrentState)
	assert.Equal(t, int64(1073741824), res.Resources.MemoryBytes)
	assert.InDelta(t, 37.5, res.Resources.CPUAbsolute, 0.001)
	assert.Equal(t, int64(3600000), res.Resources.Uptime)
}

func TestClient_ServerBackupsFlattensAttributes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/client/servers/aaaa1111/backups", r.URL.Path)
		_, _ = w.Write([]byte(`{"object":"list","data":[
			{"object":"backup","attributes":{"uuid":"b-1","name":"nightly","bytes":2048,"created_at":"2025-01-01T00:00:00+00:00","completed_at":"2025-01-01T00:05:00+00:00","is_successful":true,"is_locked":false,"sha256_hash":"abc","ignored_files":["logs/"]}},
			{"object":"backup","attributes":{"uuid":"b-2","name":"manual","bytes":0,"created_at":"2025-01-02T00:00:00+00:00","completed_at":null,"is_successful":false,"is_locked":true,"sha256_hash":null,"ignored_files":[]}}
		]}`))
	}, config.PanelConfig{ApplicationKey: appKey, ClientKey: clientKey})

	backups, err := c.ServerBackups(context.Background(), "aaaa1111")
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, "nightly", backups[0].Name)
	assert.True(t, backups[0].IsSuccessful)
	assert.Equal(t, []string{"logs/"}, backups[0].IgnoredFiles)
	assert.Nil(t, backups[1].CompletedAt)
	assert.True(t, backups[1].IsLocked)
}

func TestClient_Errors(t *testing.T) {
	t.Run("upstream status is carried", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"errors":[{"code":"BadGateway"}]}`))
		}, config.PanelConfig{ApplicationKey: appKey})

		_, err := c.ListServers(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, commonerrors.Upstream))
		assert.Equal(t, http.StatusBadGateway, commonerrors.Normalize(err).StatusCode)
	})

	t.Run("missing client key is a config error", func(t *testing.T) {
		called := false
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true }, config.PanelConfig{ApplicationKey: appKey})

		_, err := c.ServerResources(context.Background(), "aaaa1111")
		assert.True(t, errors.Is(err, commonerrors.Config))
		_, err = c.ServerBackups(context.Background(), "aaaa1111")
		assert.True(t, errors.Is(err, commonerrors.Config))
		assert.False(t, called)
	})

	t.Run("missing application key is a config error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, config.PanelConfig{})
		_, err := c.ListServers(context.Background())
		assert.True(t, errors.Is(err, commonerrors.Config))
	})

	t.Run("malformed body is an upstream error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>maintenance</html>`))
		}, config.PanelConfig{ApplicationKey: appKey})
		_, err := c.ListServers(context.Background())
		assert.True(t, errors.Is(err, commonerrors.Upstream))
	})
}
