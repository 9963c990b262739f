// Package safety is the pre-submission content gate. Every comment insert
// runs through a Classifier first; votes and moderation actions never do.
package safety

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Verdict is the classifier's answer for one piece of text. Reason is only
// meaningful when Safe is false and is shown to the user verbatim.
type Verdict struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason,omitempty"`
}

// Classifier decides whether proposed comment content may be persisted.
// A transport or classifier failure must surface as an error: the caller
// rejects the submission rather than silently bypassing the gate.
type Classifier interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

// HTTPClassifier calls an external moderation endpoint.
type HTTPClassifier struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPClassifier builds a classifier against the given endpoint.
// The request timeout also bounds how long a comment submission can hang
// on moderation.
func NewHTTPClassifier(endpoint, apiKey string) *HTTPClassifier {
	return &HTTPClassifier{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

// Classify posts the text to the moderation endpoint and decodes the verdict.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (Verdict, error) {
	startTime := time.Now()

	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return Verdict{}, fmt.Errorf("marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("[Safety] Classify FAILED: err=%v", err)
		return Verdict{}, fmt.Errorf("call classifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Safety] Classify FAILED: status=%d", resp.StatusCode)
		return Verdict{}, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var verdict Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return Verdict{}, fmt.Errorf("decode classifier response: %w", err)
	}

	log.Printf("[Safety] Classify OK: safe=%v duration=%v", verdict.Safe, time.Since(startTime))
	return verdict, nil
}

// Permissive approves everything. Used only when no classifier endpoint is
// configured, so the bypass is a deliberate wiring decision rather than a
// silent failure mode.
type Permissive struct{}

func (Permissive) Classify(ctx context.Context, text string) (Verdict, error) {
	return Verdict{Safe: true}, nil
}
