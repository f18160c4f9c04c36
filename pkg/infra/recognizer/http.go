package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/promptguard/promptguard/pkg/infra/httpx"
	"github.com/promptguard/promptguard/pkg/types"
)

// HTTPRecognizer calls a remote entity-recognition service (Presidio-style
// analyzer API). The response carries typed spans with confidences.
type HTTPRecognizer struct {
	client   httpx.Client
	logger   *logrus.Logger
	endpoint string
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	Entities []struct {
		EntityType string  `json:"entity_type"`
		Start      int     `json:"start"`
		End        int     `json:"end"`
		Score      float64 `json:"score"`
	} `json:"entities"`
}

func NewHTTPRecognizer(client httpx.Client, logger *logrus.Logger, endpoint string) *HTTPRecognizer {
	return &HTTPRecognizer{
		client:   client,
		logger:   logger,
		endpoint: endpoint,
	}
}

func (r *HTTPRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	payload, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("entity recognizer call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read analyze response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		r.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
		}).Error("entity recognizer returned non-200")
		return nil, fmt.Errorf("entity recognizer returned status %d", resp.StatusCode)
	}

	var parsed analyzeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse analyze response: %w", err)
	}

	entities := make([]Entity, 0, len(parsed.Entities))
	for _, e := range parsed.Entities {
		entities = append(entities, Entity{
			Type:       e.EntityType,
			Span:       types.Span{Start: e.Start, End: e.End},
			Confidence: e.Score,
		})
	}
	return entities, nil
}
