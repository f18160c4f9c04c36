package contentsafety

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/promptguard/promptguard/pkg/infra/httpx"
)

// Severity scores are normalized to [0,1] from the provider's 0-7 scale.
const providerMaxSeverity = 7.0

var defaultCategories = []string{"Hate", "Violence", "Sexual", "SelfHarm"}

// Classifier is the external content-safety capability consumed by the
// content filter detector.
//
//go:generate mockery --name=Classifier --dir=. --output=./mocks --filename=classifier_mock.go --case=underscore --with-expecter
type Classifier interface {
	Classify(ctx context.Context, text string) (map[string]float64, error)
}

// Client calls an Azure Content Safety shaped text-analysis API. All calls
// go through a circuit breaker so a provider outage fails fast instead of
// burning the detector deadline on every scan.
type Client struct {
	client   httpx.Client
	breaker  httpx.CircuitBreaker
	logger   *logrus.Logger
	endpoint string
	apiKey   string
}

type classifyRequest struct {
	Text       string   `json:"text"`
	Categories []string `json:"categories"`
	OutputType string   `json:"outputType"`
}

type classifyResponse struct {
	CategoriesAnalysis []struct {
		Category string  `json:"category"`
		Severity float64 `json:"severity"`
	} `json:"categoriesAnalysis"`
}

func NewClient(client httpx.Client, logger *logrus.Logger, endpoint, apiKey string) *Client {
	return &Client{
		client:   client,
		breaker:  httpx.NewCircuitBreaker("content_safety", 30*time.Second, 5),
		logger:   logger,
		endpoint: endpoint,
		apiKey:   apiKey,
	}
}

func (c *Client) Classify(ctx context.Context, text string) (map[string]float64, error) {
	payload, err := json.Marshal(classifyRequest{
		Text:       text,
		Categories: defaultCategories,
		OutputType: "EightSeverityLevels",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal classify request: %w", err)
	}

	var scores map[string]float64
	err = c.breaker.Execute(func() error {
		var execErr error
		scores, execErr = c.classify(ctx, payload)
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

func (c *Client) classify(ctx context.Context, payload []byte) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content safety call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read classify response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
		}).Error("content safety returned non-200")
		return nil, fmt.Errorf("content safety returned status %d", resp.StatusCode)
	}

	var parsed classifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse classify response: %w", err)
	}

	scores := make(map[string]float64, len(parsed.CategoriesAnalysis))
	for _, ca := range parsed.CategoriesAnalysis {
		normalized := ca.Severity / providerMaxSeverity
		if normalized > 1 {
			normalized = 1
		}
		scores[strings.ToLower(ca.Category)] = normalized
	}
	return scores, nil
}
