// Package sentiment is the HTTP client for the external sentiment
// classifier service. The service is opaque: it receives raw text and
// returns a label plus score breakdown; no model logic lives here.
package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Labels returned by the classifier.
const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
)

// Scores is the classifier's per-label breakdown. Compound is the
// aggregate polarity in [-1, 1].
type Scores struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
	Compound float64 `json:"compound"`
}

// Vector flattens the scores into the fixed-dimension embedding stored
// alongside each post.
func (s Scores) Vector() []float32 {
	return []float32{
		float32(s.Positive),
		float32(s.Negative),
		float32(s.Neutral),
		float32(s.Compound),
	}
}

// Result is one classification outcome.
type Result struct {
	Label    string `json:"label"`
	Scores   Scores `json:"scores"`
	Language string `json:"language"`
}

// Classifier is the surface the ingest pipeline consumes.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// Client calls the classifier service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a classifier client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

var _ Classifier = (*Client)(nil)

type classifyReq struct {
	Text string `json:"text"`
}

// Classify sends text to the service and decodes the result.
func (c *Client) Classify(ctx context.Context, text string) (Result, error) {
	body, _ := json.Marshal(classifyReq{Text: text})
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("sentiment classify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return Result{}, fmt.Errorf("sentiment classify: status %d", resp.StatusCode)
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("sentiment classify decode: %w", err)
	}
	return out, nil
}
