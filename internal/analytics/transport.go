package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/elastic/go-elasticsearch/v8"
)

// ElasticsearchTransport indexes each event as one document.
type ElasticsearchTransport struct {
	client *elasticsearch.Client
	index  string
	optOut atomic.Bool
}

func NewElasticsearchTransport(client *elasticsearch.Client, index string) *ElasticsearchTransport {
	return &ElasticsearchTransport{client: client, index: index}
}

func (t *ElasticsearchTransport) Init(ctx context.Context) error {
	res, err := t.client.Ping(t.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}
	return nil
}

func (t *ElasticsearchTransport) SetOptOut(optOut bool) {
	t.optOut.Store(optOut)
}

func (t *ElasticsearchTransport) Send(ctx context.Context, event Event) error {
	if t.optOut.Load() {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	res, err := t.client.Index(
		t.index,
		bytes.NewReader(body),
		t.client.Index.WithContext(ctx),
		t.client.Index.WithDocumentID(event.ID),
	)
	if err != nil {
		return fmt.Errorf("index event: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index event: %s", res.Status())
	}
	return nil
}

// NopTransport accepts and discards everything.
type NopTransport struct{}

func (NopTransport) Init(context.Context) error        { return nil }
func (NopTransport) SetOptOut(bool)                    {}
func (NopTransport) Send(context.Context, Event) error { return nil }
