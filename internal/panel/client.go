// Package panel reads servers, live usage and backups from the game panel's
// application and client APIs.
package panel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"blockhost-portal/internal/common/config"
	"blockhost-portal/internal/common/errors"
	commonhttp "blockhost-portal/internal/common/http"
	"blockhost-portal/internal/common/metrics"
	"blockhost-portal/internal/common/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	serviceName = "panel"
	perPage     = 100
	// maxPages stops a misbehaving pagination cursor from looping forever.
	maxPages = 50
)

type Client struct {
	baseURL        string
	applicationKey string
	clientKey      string
	http           *commonhttp.Client
	obs            *observability.Observability
}

func NewClient(cfg config.PanelConfig, obs *observability.Observability) *Client {
	return NewClientWithHTTP(cfg, commonhttp.NewClient(config.GetDuration(cfg.Timeout)), obs)
}

func NewClientWithHTTP(cfg config.PanelConfig, hc *commonhttp.Client, obs *observability.Observability) *Client {
	return &Client{
		baseURL:        cfg.BaseURL,
		applicationKey: cfg.ApplicationKey,
		clientKey:      cfg.ClientKey,
		http:           hc,
		obs:            obs,
	}
}

// ListServers returns every server visible to the application key, following
// pagination to the last page.
func (c *Client) ListServers(ctx context.Context) ([]ServerListItem, error) {
	if c.applicationKey == "" {
		return nil, errors.NewConfigError("panel application key")
	}

	var all []ServerListItem
	for page := 1; page <= maxPages; page++ {
		endpoint := fmt.Sprintf("%s/api/application/servers?page=%d&per_page=%d", c.baseURL, page, perPage)

		var env listEnvelope
		if err := c.get(ctx, "list_servers", endpoint, c.applicationKey, &env); err != nil {
			return nil, err
		}
		all = append(all, env.Data...)

		if env.Meta.Pagination.TotalPages <= page {
			break
		}
	}
	return all, nil
}

func (c *Client) ServerResources(ctx context.Context, identifier string) (*Resources, error) {
	if c.clientKey == "" {
		return nil, errors.NewConfigError("panel client key")
	}

	endpoint := fmt.Sprintf("%s/api/client/servers/%s/resources", c.baseURL, url.PathEscape(identifier))
	var env resourcesEnvelope
	if err := c.get(ctx, "server_resources", endpoint, c.clientKey, &env); err != nil {
		return nil, err
	}
	return &env.Attributes, nil
}

func (c *Client) ServerBackups(ctx context.Context, identifier string) ([]Backup, error) {
	if c.clientKey == "" {
		return nil, errors.NewConfigError("panel client key")
	}

	endpoint := fmt.Sprintf("%s/api/client/servers/%s/backups", c.baseURL, url.PathEscape(identifier))
	var env backupsEnvelope
	if err := c.get(ctx, "server_backups", endpoint, c.clientKey, &env); err != nil {
		return nil, err
	}

	backups := make([]Backup, 0, len(env.Data))
	for _, item := range env.Data {
		backups = append(backups, item.Attributes)
	}
	return backups, nil
}

func (c *Client) get(ctx context.Context, endpointName, endpoint, key string, out interface{}) error {
	ctx, span := c.obs.StartSpan(ctx, "panel."+endpointName, attribute.String("panel.endpoint", endpointName))
	defer span.End()

	start := time.Now()
	resp, err := c.http.Send(ctx, http.MethodGet, endpoint, map[string]string{
		"Authorization": "Bearer " + key,
		"Accept":        "Application/vnd.pterodactyl.v1+json",
	}, nil)
	elapsed := time.Since(start)
	metrics.PanelUpstreamDuration.WithLabelValues(endpointName).Observe(elapsed.Seconds())

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.obs.RecordUpstreamCall(ctx, serviceName, "transport_error", elapsed)
		return errors.NewUpstreamTransportError(serviceName, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if !resp.OK() {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		c.obs.RecordUpstreamCall(ctx, serviceName, "http_error", elapsed)
		return errors.NewUpstreamError(serviceName, resp.StatusCode, string(resp.Body))
	}
	c.obs.RecordUpstreamCall(ctx, serviceName, "ok", elapsed)

	if err := resp.Decode(out); err != nil {
		return errors.NewUpstreamTransportError(serviceName, err)
	}
	return nil
}
