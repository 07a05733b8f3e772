package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"splicer/internal/config"
	"splicer/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventAdBreakStarted, notifications.Payload{"eventID": 1}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("nil config: %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "ad break started",
			event: notifications.EventAdBreakStarted,
			payload: notifications.Payload{
				"eventID":  uint32(7),
				"at":       105 * time.Second,
				"duration": 30 * time.Second,
				"source":   "content_match",
			},
			expectTitle:    "Splicer - Ad Break",
			expectMessage:  "📺 Splice-out #7 at 1m45s for 30s (content_match)",
			expectTags:     "splicer,adbreak,out",
			expectPriority: "low",
		},
		{
			name:  "ad break ended",
			event: notifications.EventAdBreakEnded,
			payload: notifications.Payload{
				"eventID":  uint32(8),
				"pairedID": uint32(7),
				"at":       135 * time.Second,
			},
			expectTitle:    "Splicer - Back to Program",
			expectMessage:  "🔙 Splice-in #8 at 2m15s (break #7)",
			expectTags:     "splicer,adbreak,in",
			expectPriority: "low",
		},
		{
			name:  "dispatch failed",
			event: notifications.EventDispatchFailed,
			payload: notifications.Payload{
				"kind":    "splice_out",
				"eventID": 3,
				"error":   errors.New("multiplexer unavailable"),
			},
			expectTitle:    "Splicer - Signal Lost",
			expectMessage:  "⚠️ splice_out #3 not delivered: multiplexer unavailable",
			expectTags:     "splicer,dispatch,failed",
			expectPriority: "high",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "output",
				"error":   "dial udp: connection refused",
			},
			expectTitle:    "Splicer - Error",
			expectMessage:  "❌ Error with output: dial udp: connection refused",
			expectTags:     "splicer,error,alert",
			expectPriority: "high",
		},
		{
			name:  "daemon started",
			event: notifications.EventDaemonStarted,
			payload: notifications.Payload{
				"target": "udp://239.0.0.1:5000",
				"modes":  "periodic",
			},
			expectTitle:   "Splicer - Started",
			expectMessage: "▶️ Signaling on udp://239.0.0.1:5000 (periodic)",
			expectTags:    "splicer,daemon,started",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5
			cfg.Notifications.AdBreaks = true
			cfg.Notifications.Errors = true

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceIgnoresDisabledCategories(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.AdBreaks = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	suppressed := []notifications.Event{
		notifications.EventAdBreakStarted,
		notifications.EventAdBreakEnded,
		notifications.EventDispatchFailed,
		notifications.EventError,
		notifications.Event("unknown"),
	}
	for _, event := range suppressed {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic closed", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
