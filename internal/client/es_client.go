package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"review-auth/internal/config"
	"review-auth/internal/models"
	"review-auth/internal/util"
)

// ESClient indexes security events for audit search.
type ESClient struct {
	Client *elasticsearch.Client
	index  string
}

func NewElasticsearchClient(cfg *config.Config) (*ESClient, error) {
	esConfig := cfg.Elasticsearch

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.IsDevelopment(),
		},
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{esConfig.URL},
		Username:  esConfig.Username,
		Password:  esConfig.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	util.Info("Elasticsearch client initialized",
		zap.String("index", esConfig.Index))
	return &ESClient{Client: es, index: esConfig.Index}, nil
}

// IndexSecurityEvents writes events one document at a time; audit volume is
// low enough that the bulk API is not worth its bookkeeping here.
func (c *ESClient) IndexSecurityEvents(ctx context.Context, events []models.SecurityEvent) error {
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal security event: %w", err)
		}

		req := esapi.IndexRequest{
			Index: c.index,
			Body:  bytes.NewReader(payload),
		}
		res, err := req.Do(ctx, c.Client)
		if err != nil {
			return fmt.Errorf("failed to index security event: %w", err)
		}
		if res.IsError() {
			res.Body.Close()
			return fmt.Errorf("elasticsearch rejected security event: %s", res.Status())
		}
		res.Body.Close()
	}
	return nil
}
