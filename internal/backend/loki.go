package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/valter-silva-au/opswatch/pkg/models"
)

// errorsLogQL matches common failure markers case-insensitively across all
// scraped jobs.
const errorsLogQL = `{job=~".+"} |~ "(?i)(error|exception|fail|critical)"`

// LogsClient queries the log backend. Results are ordered oldest-to-newest
// and silently truncated at the requested line limit.
type LogsClient interface {
	// QueryRange runs a raw LogQL query over the window ending now.
	QueryRange(ctx context.Context, logql string, window time.Duration, limit int) (models.LogQueryResult, error)

	// ErrorLogs returns recent lines that look like errors.
	ErrorLogs(ctx context.Context, window time.Duration, limit int) (models.LogQueryResult, error)

	// ContainerLogs returns recent lines from one container.
	ContainerLogs(ctx context.Context, container string, window time.Duration, limit int) (models.LogQueryResult, error)

	// SearchLogs returns recent lines containing the literal text.
	SearchLogs(ctx context.Context, text string, window time.Duration, limit int) (models.LogQueryResult, error)

	// Labels lists the label names known to the backend.
	Labels(ctx context.Context) ([]string, error)

	CheckHealth(ctx context.Context) bool
}

// lokiClient implements LogsClient against the Loki HTTP API.
type lokiClient struct {
	baseURL string
	client  *http.Client
	log     *logrus.Entry
}

// NewLokiClient creates a LogsClient for the Loki server at baseURL.
func NewLokiClient(baseURL string, timeout time.Duration) LogsClient {
	return &lokiClient{
		baseURL: trimBaseURL(baseURL),
		client:  &http.Client{Timeout: timeout},
		log:     logrus.WithField("component", "loki"),
	}
}

// lokiResponse is the query_range answer: a set of streams, each carrying
// [nanosecond-timestamp, line] value pairs.
type lokiResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Stream map[string]string `json:"stream"`
			Values [][2]string       `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

func (c *lokiClient) QueryRange(ctx context.Context, logql string, window time.Duration, limit int) (models.LogQueryResult, error) {
	end := time.Now()
	start := end.Add(-window)

	q := url.Values{
		"query":     {logql},
		"start":     {strconv.FormatInt(start.UnixNano(), 10)},
		"end":       {strconv.FormatInt(end.UnixNano(), 10)},
		"limit":     {strconv.Itoa(limit)},
		"direction": {"backward"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/loki/api/v1/query_range?"+q.Encode(), nil)
	if err != nil {
		return models.LogQueryResult{}, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.LogQueryResult{}, classifyTransport(err, ErrTimeout, ErrUnreachable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.LogQueryResult{}, classifyTransport(err, ErrTimeout, ErrUnreachable)
	}

	var parsed lokiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return models.LogQueryResult{}, fmt.Errorf("%w: status %d: %v", ErrMalformed, resp.StatusCode, err)
	}
	if parsed.Status != "success" {
		return models.LogQueryResult{}, fmt.Errorf("%w: status %q", ErrMalformed, parsed.Status)
	}

	var lines []models.LogLine
	for _, stream := range parsed.Data.Result {
		source := stream.Stream["container_name"]
		if source == "" {
			source = stream.Stream["job"]
		}
		level := stream.Stream["level"]

		for _, value := range stream.Values {
			ns, err := strconv.ParseInt(value[0], 10, 64)
			if err != nil {
				return models.LogQueryResult{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformed, value[0])
			}
			lines = append(lines, models.LogLine{
				Timestamp: time.Unix(0, ns),
				Level:     level,
				Source:    source,
				Message:   value[1],
			})
		}
	}

	// Streams arrive newest-first and interleaved; normalize to
	// chronological order, newest last.
	sort.Slice(lines, func(i, j int) bool { return lines[i].Timestamp.Before(lines[j].Timestamp) })
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}

	c.log.Debugf("query returned %d lines", len(lines))
	return models.LogQueryResult{Lines: lines}, nil
}

func (c *lokiClient) ErrorLogs(ctx context.Context, window time.Duration, limit int) (models.LogQueryResult, error) {
	return c.QueryRange(ctx, errorsLogQL, window, limit)
}

func (c *lokiClient) ContainerLogs(ctx context.Context, container string, window time.Duration, limit int) (models.LogQueryResult, error) {
	logql := fmt.Sprintf(`{container_name=%q}`, container)
	return c.QueryRange(ctx, logql, window, limit)
}

func (c *lokiClient) SearchLogs(ctx context.Context, text string, window time.Duration, limit int) (models.LogQueryResult, error) {
	logql := fmt.Sprintf(`{job=~".+"} |= %q`, text)
	return c.QueryRange(ctx, logql, window, limit)
}

func (c *lokiClient) Labels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/loki/api/v1/labels", nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err, ErrTimeout, ErrUnreachable)
	}
	defer resp.Body.Close()

	var parsed struct {
		Status string   `json:"status"`
		Data   []string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: status %d: %v", ErrMalformed, resp.StatusCode, err)
	}
	if parsed.Status != "success" {
		return nil, fmt.Errorf("%w: status %q", ErrMalformed, parsed.Status)
	}
	return parsed.Data, nil
}

func (c *lokiClient) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ready", nil)
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
