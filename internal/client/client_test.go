package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	commonerrors "blockhost-portal/internal/common/errors"
	"blockhost-portal/internal/forms"
	"blockhost-portal/internal/forms/formstest"
	"blockhost-portal/internal/submission"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ submission.Transport = (*Client)(nil)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 0)
}

func TestClient_SubmitApplication(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/applications", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "founding", body["formType"])
		assert.Equal(t, true, body["formData"].(map[string]interface{})["agreeCommitment"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"emailResponse":{"id":"a"},"confirmationResponse":{"id":"b"}}`))
	})

	resp, err := c.SubmitApplication(context.Background(), forms.Founding, formstest.Founding())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "b", resp.ConfirmationResponse.ID)
}

func TestClient_SubmitErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode commonerrors.ErrorCode
	}{
		{name: "validation", status: 400, body: `{"error":"Submission failed validation","fields":{"email":"Please enter a valid email address"}}`, wantCode: commonerrors.ErrCodeValidationFailed},
		{name: "bad request", status: 400, body: `{"error":"Invalid request"}`, wantCode: commonerrors.ErrCodeBadRequest},
		{name: "mail down", status: 500, body: `{"error":"Failed to send notification"}`, wantCode: commonerrors.ErrCodeUpstream},
		{name: "not json", status: 502, body: `<html>bad gateway</html>`, wantCode: commonerrors.ErrCodeUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := c.Submit(context.Background(), forms.Standard, formstest.Standard())
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, commonerrors.Normalize(err).Code)
		})
	}
}

func TestClient_SubmitTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	err := New(srv.URL, 0).Submit(context.Background(), forms.Standard, formstest.Standard())
	assert.ErrorIs(t, err, commonerrors.Upstream)
}

func TestClient_PanelActions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/panel", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
			return
		}

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch body["action"] {
		case "list_servers":
			assert.NotContains(t, body, "serverId")
			_, _ = w.Write([]byte(`{"data":[{"object":"server","attributes":{"id":1,"identifier":"aaaa1111","user":7}}]}`))
		case "server_details":
			_, _ = w.Write([]byte(`{"object":"server","attributes":{"id":1,"identifier":"` + body["serverId"] + `","user":7}}`))
		case "server_resources":
			_, _ = w.Write([]byte(`{"current_state":"running","is_suspended":false,"resources":{"memory_bytes":1024}}`))
		case "server_backups":
			if body["serverId"] == "bbbb2222" {
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"Access denied to this server"}`))
				return
			}
			_, _ = w.Write([]byte(`{"data":[{"uuid":"b1","name":"nightly","is_successful":true}]}`))
		}
	})
	ctx := context.Background()

	servers, err := c.ListServers(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "aaaa1111", servers[0].Attributes.Identifier)

	details, err := c.ServerDetails(ctx, "tok", "aaaa1111")
	require.NoError(t, err)
	assert.Equal(t, 7, details.Attributes.User)

	res, err := c.ServerResources(ctx, "tok", "aaaa1111")
	require.NoError(t, err)
	assert.Equal(t, "running", res.CurrentState)

	backups, err := c.ServerBackups(ctx, "tok", "aaaa1111")
	require.NoError(t, err)
	assert.Equal(t, "nightly", backups[0].Name)

	_, err = c.ServerBackups(ctx, "tok", "bbbb2222")
	assert.ErrorIs(t, err, commonerrors.Forbidden)
	assert.Equal(t, "Access denied to this server", commonerrors.Normalize(err).Message)

	_, err = c.ListServers(ctx, "expired")
	assert.ErrorIs(t, err, commonerrors.Unauthorized)
}
