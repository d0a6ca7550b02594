package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/edgebank/assist/internal/config"
	"github.com/edgebank/assist/internal/retrieval/domain"
	"go.uber.org/zap"
)

type searchRequest struct {
	Namespace string `json:"namespace"`
	Query     string `json:"query"`
	TopK      int    `json:"top_k"`
}

type searchResponse struct {
	Results []struct {
		Content string  `json:"content"`
		Source  string  `json:"source"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// HTTPClient fetches passages from the remote knowledge store.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zap.Logger
}

func NewHTTPClient(cfg config.Config, log *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.KnowledgeStoreURL, "/"),
		apiKey:  cfg.KnowledgeStoreAPIKey,
		http:    &http.Client{Timeout: cfg.KnowledgeStoreTimeout},
		log:     log.Named("retrieval.client"),
	}
}

func (c *HTTPClient) Fetch(ctx context.Context, namespace domain.Namespace, query string, topK int) ([]domain.Passage, error) {
	body, err := json.Marshal(searchRequest{
		Namespace: string(namespace),
		Query:     query,
		TopK:      topK,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Join(domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		c.log.Warn("knowledge store returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.String("namespace", string(namespace)))
		return nil, fmt.Errorf("%w: status %d", domain.ErrUpstream, resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Join(domain.ErrUpstream, err)
	}

	passages := make([]domain.Passage, 0, len(parsed.Results))
	for _, result := range parsed.Results {
		passages = append(passages, domain.Passage{
			Text:     result.Content,
			SourceID: result.Source,
			Score:    result.Score,
		})
	}
	return passages, nil
}
