package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newLokiServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func lokiStreams(streams ...string) string {
	return fmt.Sprintf(
		`{"status":"success","data":{"resultType":"streams","result":[%s]}}`,
		strings.Join(streams, ","),
	)
}

func TestQueryRangeParsesStreams(t *testing.T) {
	srv := newLokiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/query_range" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("direction"); got != "backward" {
			t.Errorf("expected backward direction, got %q", got)
		}
		fmt.Fprint(w, lokiStreams(
			`{"stream":{"container_name":"web","level":"error"},"values":[
				["1700000002000000000","connection refused"],
				["1700000000000000000","starting up"]
			]}`,
			`{"stream":{"job":"varlogs"},"values":[
				["1700000001000000000","disk warning"]
			]}`,
		))
	})

	c := NewLokiClient(srv.URL, 5*time.Second)
	result, err := c.QueryRange(context.Background(), `{job=~".+"}`, time.Hour, 100)
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}

	if len(result.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(result.Lines))
	}

	// Chronological order, newest last.
	for i := 1; i < len(result.Lines); i++ {
		if result.Lines[i].Timestamp.Before(result.Lines[i-1].Timestamp) {
			t.Fatal("lines not in chronological order")
		}
	}

	if result.Lines[0].Message != "starting up" || result.Lines[0].Source != "web" {
		t.Errorf("first line wrong: %+v", result.Lines[0])
	}
	if result.Lines[0].Level != "error" {
		t.Errorf("expected level from stream labels, got %q", result.Lines[0].Level)
	}
	// Source falls back to job when container_name is absent.
	if result.Lines[1].Source != "varlogs" {
		t.Errorf("expected job fallback source, got %q", result.Lines[1].Source)
	}
}

func TestQueryRangeTruncatesKeepingNewest(t *testing.T) {
	srv := newLokiServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, lokiStreams(
			`{"stream":{"job":"a"},"values":[
				["1700000003000000000","newest"],
				["1700000002000000000","middle"],
				["1700000001000000000","oldest"]
			]}`,
		))
	})

	c := NewLokiClient(srv.URL, 5*time.Second)
	result, err := c.QueryRange(context.Background(), `{job="a"}`, time.Hour, 2)
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}

	if len(result.Lines) != 2 {
		t.Fatalf("expected 2 lines after truncation, got %d", len(result.Lines))
	}
	if result.Lines[0].Message != "middle" || result.Lines[1].Message != "newest" {
		t.Errorf("truncation should drop the oldest line, got %+v", result.Lines)
	}
}

func TestQueryRangeEmptyResult(t *testing.T) {
	srv := newLokiServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, lokiStreams())
	})

	c := NewLokiClient(srv.URL, 5*time.Second)
	result, err := c.QueryRange(context.Background(), `{job="absent"}`, time.Hour, 10)
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(result.Lines) != 0 {
		t.Errorf("expected no lines, got %d", len(result.Lines))
	}
}

func TestQueryRangeBadTimestamp(t *testing.T) {
	srv := newLokiServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, lokiStreams(`{"stream":{},"values":[["not-a-number","line"]]}`))
	})

	c := NewLokiClient(srv.URL, 5*time.Second)
	_, err := c.QueryRange(context.Background(), `{job="a"}`, time.Hour, 10)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestQueryRangeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewLokiClient(srv.URL, time.Second)
	_, err := c.QueryRange(context.Background(), `{job="a"}`, time.Hour, 10)
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
}

func TestContainerLogsBuildsSelector(t *testing.T) {
	var gotQuery string
	srv := newLokiServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		fmt.Fprint(w, lokiStreams())
	})

	c := NewLokiClient(srv.URL, 5*time.Second)
	if _, err := c.ContainerLogs(context.Background(), "postgres", time.Hour, 10); err != nil {
		t.Fatalf("ContainerLogs: %v", err)
	}
	if gotQuery != `{container_name="postgres"}` {
		t.Errorf("unexpected selector %q", gotQuery)
	}
}

func TestSearchLogsQuotesText(t *testing.T) {
	var gotQuery string
	srv := newLokiServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		fmt.Fprint(w, lokiStreams())
	})

	c := NewLokiClient(srv.URL, 5*time.Second)
	if _, err := c.SearchLogs(context.Background(), `disk "full"`, time.Hour, 10); err != nil {
		t.Fatalf("SearchLogs: %v", err)
	}
	if !strings.Contains(gotQuery, `|= "disk \"full\""`) {
		t.Errorf("search text not quoted: %q", gotQuery)
	}
}

func TestLabels(t *testing.T) {
	srv := newLokiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/labels" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"status":"success","data":["job","container_name","level"]}`)
	})

	c := NewLokiClient(srv.URL, 5*time.Second)
	labels, err := c.Labels(context.Background())
	if err != nil {
		t.Fatalf("Labels: %v", err)
	}
	if len(labels) != 3 || labels[0] != "job" {
		t.Errorf("unexpected labels %v", labels)
	}
}

func TestLokiCheckHealth(t *testing.T) {
	ready := true
	srv := newLokiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ready" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ready {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})

	c := NewLokiClient(srv.URL, 5*time.Second)
	if !c.CheckHealth(context.Background()) {
		t.Error("expected ready")
	}
	ready = false
	if c.CheckHealth(context.Background()) {
		t.Error("expected not ready")
	}
}
