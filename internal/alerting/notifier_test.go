package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTelegramServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *telegramNotifier) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	n := &telegramNotifier{
		apiBase: srv.URL,
		token:   "123:abc",
		chatID:  "-100200300",
		client:  &http.Client{Timeout: time.Second},
	}
	return srv, n
}

func sampleEvent() Event {
	return Event{
		RuleID:   "cpu-usage",
		RuleName: "High CPU Usage",
		Severity: SeverityCritical,
		Value:    97,
		FiredAt:  time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		Message:  "High CPU Usage: 97.00 > 95.00",
	}
}

func TestTelegramNotifySendsMessage(t *testing.T) {
	var got telegramMessage
	var gotPath string
	_, n := newTelegramServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding message: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := n.Notify(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if gotPath != "/bot123:abc/sendMessage" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if got.ChatID != "-100200300" {
		t.Errorf("unexpected chat id %s", got.ChatID)
	}
	if !strings.Contains(got.Text, "High CPU Usage") || !strings.Contains(got.Text, "CRITICAL") {
		t.Errorf("unexpected text %q", got.Text)
	}
	if got.ParseMode != "Markdown" {
		t.Errorf("unexpected parse mode %s", got.ParseMode)
	}
}

func TestTelegramNotifyRecovery(t *testing.T) {
	var got telegramMessage
	_, n := newTelegramServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	})

	event := sampleEvent()
	event.Recovery = true
	event.Message = "High CPU Usage: recovered, current value 40.00"

	if err := n.NotifyRecovery(context.Background(), event); err != nil {
		t.Fatalf("NotifyRecovery: %v", err)
	}
	if !strings.Contains(got.Text, "recovered") {
		t.Errorf("unexpected text %q", got.Text)
	}
}

func TestTelegramNotifyErrorStatus(t *testing.T) {
	_, n := newTelegramServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	if err := n.Notify(context.Background(), sampleEvent()); err == nil {
		t.Error("expected an error for non-200 status")
	}
}
