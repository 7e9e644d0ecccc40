// Package client calls the portal's own HTTP API: it is the submission
// transport used by the intake CLI and a thin dashboard client for the proxy.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"blockhost-portal/internal/common/errors"
	commonhttp "blockhost-portal/internal/common/http"
	"blockhost-portal/internal/forms"
	"blockhost-portal/internal/notify"
	"blockhost-portal/internal/panel"
	"blockhost-portal/internal/proxy"
)

const DefaultTimeout = 30 * time.Second

type Client struct {
	baseURL    string
	httpClient *commonhttp.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return NewWithHTTP(baseURL, commonhttp.NewClient(timeout))
}

func NewWithHTTP(baseURL string, hc *commonhttp.Client) *Client {
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), httpClient: hc}
}

// Submit posts an application. It satisfies submission.Transport.
func (c *Client) Submit(ctx context.Context, formType forms.FormType, values forms.Values) error {
	_, err := c.SubmitApplication(ctx, formType, values)
	return err
}

func (c *Client) SubmitApplication(ctx context.Context, formType forms.FormType, values forms.Values) (*notify.Response, error) {
	var out notify.Response
	err := c.post(ctx, "/api/applications", "", notify.Request{FormType: formType, FormData: values}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListServers(ctx context.Context, token string) ([]panel.ServerListItem, error) {
	var out proxy.ListResponse
	if err := c.panel(ctx, token, proxy.ActionListServers, "", &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) ServerDetails(ctx context.Context, token, serverID string) (*panel.ServerListItem, error) {
	var out panel.ServerListItem
	if err := c.panel(ctx, token, proxy.ActionServerDetails, serverID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ServerResources(ctx context.Context, token, serverID string) (*panel.Resources, error) {
	var out panel.Resources
	if err := c.panel(ctx, token, proxy.ActionServerResources, serverID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ServerBackups(ctx context.Context, token, serverID string) ([]panel.Backup, error) {
	var out proxy.BackupsResponse
	if err := c.panel(ctx, token, proxy.ActionServerBackups, serverID, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) panel(ctx context.Context, token string, action proxy.Action, serverID string, out interface{}) error {
	body := map[string]string{"action": string(action)}
	if serverID != "" {
		body["serverId"] = serverID
	}
	return c.post(ctx, "/api/panel", token, body, out)
}

func (c *Client) post(ctx context.Context, path, token string, body, out interface{}) error {
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	resp, err := c.httpClient.Send(ctx, http.MethodPost, c.baseURL+path, headers, body)
	if err != nil {
		return errors.NewUpstreamTransportError("portal", err)
	}
	if !resp.OK() {
		return decodeError(resp)
	}
	return resp.Decode(out)
}

// decodeError maps an error response back onto the matching StandardError kind.
func decodeError(resp *commonhttp.Response) error {
	var body errors.ErrorResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil || body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}

	var code errors.ErrorCode
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		code = errors.ErrCodeUnauthorized
	case http.StatusForbidden:
		code = errors.ErrCodeForbidden
	case http.StatusNotFound:
		code = errors.ErrCodeNotFound
	case http.StatusBadRequest:
		if len(body.Fields) > 0 {
			stdErr := errors.NewValidationFailedError(body.Fields)
			stdErr.Message = body.Error
			return stdErr
		}
		code = errors.ErrCodeBadRequest
	default:
		return errors.NewUpstreamError("portal", resp.StatusCode, body.Error)
	}
	return &errors.StandardError{
		Code:       code,
		Message:    body.Error,
		Details:    fmt.Sprintf("status: %d", resp.StatusCode),
		StatusCode: resp.StatusCode,
		Timestamp:  time.Now().UTC(),
	}
}
