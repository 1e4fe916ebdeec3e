package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	metricsAnalystSystem = "You are an expert in server infrastructure monitoring. " +
		"You analyze metrics and give practical recommendations. " +
		"Answer briefly and to the point. " +
		"If you see problems, call them out explicitly and propose fixes."

	logsAnalystSystem = "You are an expert in log analysis and troubleshooting. " +
		"You find problems, identify root causes, and give recommendations. " +
		"Answer briefly and to the point."
)

// CompletionOptions tune a single text completion.
type CompletionOptions struct {
	System      string
	Temperature float64
	MaxTokens   int
}

// ModelClient generates text with the language-model backend. Inference on a
// local model is slow, so this client runs with a timeout measured in minutes
// rather than the seconds used for metric and log queries. It never retries;
// retry policy belongs to callers.
type ModelClient interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)

	// AnalyzeMetrics asks the model to interpret a metric reading set.
	AnalyzeMetrics(ctx context.Context, data map[string]any, contextNote string) (string, error)

	// AnalyzeLogs asks the model to interpret a sample of log lines.
	// At most 50 lines are sent.
	AnalyzeLogs(ctx context.Context, lines []string, contextNote string) (string, error)

	CheckHealth(ctx context.Context) bool
}

// ollamaClient implements ModelClient against the Ollama generate API.
type ollamaClient struct {
	baseURL string
	model   string
	client  *http.Client
	log     *logrus.Entry
}

// NewOllamaClient creates a ModelClient for the Ollama server at baseURL
// using the named model.
func NewOllamaClient(baseURL, model string, timeout time.Duration) ModelClient {
	return &ollamaClient{
		baseURL: trimBaseURL(baseURL),
		model:   model,
		client:  &http.Client{Timeout: timeout},
		log:     logrus.WithField("component", "ollama"),
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (c *ollamaClient) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	payload := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		System: opts.System,
		Stream: false,
		Options: generateOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", classifyTransport(err, ErrModelTimeout, ErrModelUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrModelUnavailable, resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrModelUnavailable, err)
	}

	c.log.Debugf("model answered %d chars in %s", len(parsed.Response), time.Since(started).Round(time.Millisecond))
	return parsed.Response, nil
}

func (c *ollamaClient) AnalyzeMetrics(ctx context.Context, data map[string]any, contextNote string) (string, error) {
	if contextNote == "" {
		contextNote = "analysis of the current system state"
	}

	formatted, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("formatting metrics for prompt: %w", err)
	}

	prompt := fmt.Sprintf(`Context: %s

Metrics:
%s

Analyze the metrics and answer:
1. Are there any problems or anomalies?
2. Which metrics are concerning?
3. What do you recommend?

Be concrete and practical.`, contextNote, formatted)

	// Low temperature keeps technical analysis factual.
	return c.Complete(ctx, prompt, CompletionOptions{System: metricsAnalystSystem, Temperature: 0.3})
}

func (c *ollamaClient) AnalyzeLogs(ctx context.Context, lines []string, contextNote string) (string, error) {
	if contextNote == "" {
		contextNote = "analysis of system logs"
	}
	if len(lines) > 50 {
		lines = lines[:50]
	}

	prompt := fmt.Sprintf(`Context: %s

Logs (%d lines):
%s

Analyze the logs:
1. Which errors or warnings are present?
2. Are there recurring patterns?
3. What is the likely root cause?
4. What do you recommend?`, contextNote, len(lines), strings.Join(lines, "\n"))

	return c.Complete(ctx, prompt, CompletionOptions{System: logsAnalystSystem, Temperature: 0.7})
}

func (c *ollamaClient) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warnf("health check failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
