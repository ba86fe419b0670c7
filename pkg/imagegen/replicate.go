package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bottylabs/botty/pkg/logger"
)

const (
	defaultBaseURL     = "https://api.replicate.com"
	defaultHTTPTimeout = 120 * time.Second
	pollInterval       = time.Second
	maxOutputBytes     = 32 * 1024 * 1024 // 32 MB
)

// Client runs image predictions against Replicate.
type Client struct {
	token   string
	model   ModelConfig
	baseURL string
	httpc   *http.Client
}

// NewClient builds a Replicate client for the configured model key. Unknown
// keys fall back to the default model.
func NewClient(token, modelKey string) *Client {
	return &Client{
		token:   token,
		model:   ResolveModel(modelKey),
		baseURL: defaultBaseURL,
		httpc: &http.Client{
			Timeout: defaultHTTPTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        5,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// Generate produces an image from a text prompt.
func (c *Client) Generate(ctx context.Context, prompt, aspectRatio string) ([]byte, error) {
	return c.run(ctx, c.model.GenerationInput(prompt, aspectRatio))
}

// Edit produces an image by applying a prompt to one or more source images.
func (c *Client) Edit(ctx context.Context, prompt string, imageURLs []string) ([]byte, error) {
	if len(imageURLs) == 0 {
		return nil, fmt.Errorf("image editing requires at least one source image")
	}
	return c.run(ctx, c.model.EditingInput(prompt, imageURLs))
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  *string         `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

func (c *Client) run(ctx context.Context, input map[string]any) ([]byte, error) {
	body, err := json.Marshal(map[string]any{"input": input})
	if err != nil {
		return nil, fmt.Errorf("encode prediction input: %w", err)
	}

	u := fmt.Sprintf("%s/v1/models/%s/predictions", c.baseURL, c.model.ModelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build prediction request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	// Hold the connection until the prediction finishes when possible.
	req.Header.Set("Prefer", "wait")

	pred, err := c.doPrediction(req)
	if err != nil {
		return nil, err
	}

	for !terminal(pred.Status) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
		pred, err = c.pollPrediction(ctx, pred.URLs.Get)
		if err != nil {
			return nil, err
		}
	}

	if pred.Status != "succeeded" {
		msg := "no error detail"
		if pred.Error != nil {
			msg = *pred.Error
		}
		return nil, fmt.Errorf("prediction %s %s: %s", pred.ID, pred.Status, msg)
	}

	outputURL, err := firstOutputURL(pred.Output)
	if err != nil {
		return nil, fmt.Errorf("prediction %s: %w", pred.ID, err)
	}

	data, err := c.download(ctx, outputURL)
	if err != nil {
		return nil, err
	}
	logger.DebugCF("imagegen", "Prediction completed",
		map[string]any{"model": c.model.ModelID, "prediction": pred.ID, "bytes": len(data)})
	return data, nil
}

func (c *Client) doPrediction(req *http.Request) (*prediction, error) {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prediction request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read prediction response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("replicate returned status %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	var pred prediction
	if err := json.Unmarshal(body, &pred); err != nil {
		return nil, fmt.Errorf("parse prediction response: %w", err)
	}
	return &pred, nil
}

func (c *Client) pollPrediction(ctx context.Context, getURL string) (*prediction, error) {
	if getURL == "" {
		return nil, fmt.Errorf("prediction is still running but has no poll URL")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, getURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build poll request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.doPrediction(req)
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download output: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("output download returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxOutputBytes))
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	return data, nil
}

func terminal(status string) bool {
	switch status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

// firstOutputURL accepts both output shapes Replicate uses: a single URL
// string or a list of URL strings.
func firstOutputURL(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("prediction succeeded without output")
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 && list[0] != "" {
		return list[0], nil
	}

	return "", fmt.Errorf("unrecognized prediction output: %s", truncate(string(raw), 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
