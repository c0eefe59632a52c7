package listener

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type capturePoster struct {
	got chan postedReply
}

type postedReply struct {
	channel string
	text    string
}

func newCapturePoster() *capturePoster {
	return &capturePoster{got: make(chan postedReply, 4)}
}

func (p *capturePoster) Post(_ context.Context, channelID, text string) error {
	p.got <- postedReply{channel: channelID, text: text}
	return nil
}

func newTestServer(t *testing.T, gen Chatter, cfg ServerConfig) (*Server, *capturePoster) {
	t.Helper()
	assistant, _ := newTestAssistant(t, gen)
	poster := newCapturePoster()
	return NewServer(assistant, poster, cfg), poster
}

func postEvent(t *testing.T, srv *Server, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_URLVerification(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedGen{}, ServerConfig{UserID: "U1"})

	rec := postEvent(t, srv, map[string]string{
		"type":      "url_verification",
		"challenge": "abc123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["challenge"] != "abc123" {
		t.Errorf("challenge = %q", resp["challenge"])
	}
}

func TestServer_DirectMessageRoundTrip(t *testing.T) {
	gen := &scriptedGen{response: "All caught up."}
	srv, poster := newTestServer(t, gen, ServerConfig{UserID: "U1"})

	rec := postEvent(t, srv, map[string]any{
		"type": "event_callback",
		"event": map[string]string{
			"type":         "message",
			"channel_type": "im",
			"channel":      "D42",
			"user":         "U1",
			"text":         "anything new?",
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	select {
	case reply := <-poster.got:
		if reply.channel != "D42" {
			t.Errorf("channel = %q", reply.channel)
		}
		if reply.text != "All caught up." {
			t.Errorf("text = %q", reply.text)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reply posted")
	}
}

func TestServer_IgnoresNonDMAndBotEvents(t *testing.T) {
	gen := &scriptedGen{response: "should never be sent"}
	srv, poster := newTestServer(t, gen, ServerConfig{UserID: "U1"})

	events := []map[string]string{
		{"type": "message", "channel_type": "channel", "channel": "C1", "user": "U1", "text": "hi"},
		{"type": "message", "channel_type": "im", "channel": "D1", "user": "U1", "text": "hi", "bot_id": "B9"},
		{"type": "message", "channel_type": "im", "channel": "D1", "user": "U1", "text": "hi", "subtype": "message_changed"},
		{"type": "message", "channel_type": "im", "channel": "D1", "user": "U_OTHER", "text": "hi"},
		{"type": "reaction_added", "channel_type": "im", "channel": "D1", "user": "U1", "text": "hi"},
	}
	for _, ev := range events {
		rec := postEvent(t, srv, map[string]any{"type": "event_callback", "event": ev})
		if rec.Code != http.StatusOK {
			t.Errorf("event should still be acked, got %d", rec.Code)
		}
	}

	select {
	case reply := <-poster.got:
		t.Fatalf("unexpected reply: %+v", reply)
	case <-time.After(200 * time.Millisecond):
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times", gen.calls)
	}
}

func TestServer_RateLimitDropsExcessEvents(t *testing.T) {
	gen := &scriptedGen{response: "ok"}
	srv, poster := newTestServer(t, gen, ServerConfig{UserID: "U1", RatePerMin: 1, RateBurst: 1})

	ev := map[string]any{
		"type": "event_callback",
		"event": map[string]string{
			"type": "message", "channel_type": "im",
			"channel": "D1", "user": "U1", "text": "hi",
		},
	}
	postEvent(t, srv, ev)
	postEvent(t, srv, ev)

	select {
	case <-poster.got:
	case <-time.After(5 * time.Second):
		t.Fatal("first event should have been processed")
	}
	select {
	case reply := <-poster.got:
		t.Fatalf("second event should have been dropped, got %+v", reply)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedGen{}, ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestServer_RejectsBadJSON(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedGen{}, ServerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
