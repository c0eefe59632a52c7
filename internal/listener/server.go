package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// maxEventBody caps the request body read for one Slack event.
const maxEventBody = 1 << 20

// Poster replies in the conversation an event arrived on.
type Poster interface {
	Post(ctx context.Context, channelID, text string) error
}

// slackEnvelope is the outer Slack Events API payload. Only the fields
// the listener routes on are decoded.
type slackEnvelope struct {
	Type      string     `json:"type"`
	Challenge string     `json:"challenge"`
	Event     slackEvent `json:"event"`
}

type slackEvent struct {
	Type        string `json:"type"`
	ChannelType string `json:"channel_type"`
	Channel     string `json:"channel"`
	User        string `json:"user"`
	Text        string `json:"text"`
	BotID       string `json:"bot_id"`
	Subtype     string `json:"subtype"`
}

// Server receives Slack Events API callbacks over HTTP and hands direct
// messages to the assistant. Events are acknowledged immediately and
// processed in the background; Slack retries on slow responses otherwise.
type Server struct {
	assistant *Assistant
	poster    Poster
	userID    string // only DMs from this user are processed
	limiter   *rate.Limiter
	logger    *slog.Logger

	srv *http.Server
}

// ServerConfig wires the listener's HTTP surface.
type ServerConfig struct {
	Addr       string
	UserID     string
	RatePerMin int
	RateBurst  int
	Logger     *slog.Logger
}

// NewServer creates the server. It does not start listening.
func NewServer(assistant *Assistant, poster Poster, cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RatePerMin <= 0 {
		cfg.RatePerMin = 30
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 5
	}
	s := &Server{
		assistant: assistant,
		poster:    poster,
		userID:    cfg.UserID,
		limiter:   rate.NewLimiter(rate.Limit(float64(cfg.RatePerMin)/60.0), cfg.RateBurst),
		logger:    cfg.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /slack/events", s.handleEvents)
	mux.HandleFunc("GET /health", s.handleHealth)
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listener started", "addr", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	var env slackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	switch env.Type {
	case "url_verification":
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"challenge": env.Challenge})
		return
	case "event_callback":
		// Ack first, process after. Slack retries anything over 3s.
		w.WriteHeader(http.StatusOK)
		s.dispatch(env.Event)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

// dispatch filters the event and processes it in the background.
func (s *Server) dispatch(ev slackEvent) {
	if ev.Type != "message" || ev.ChannelType != "im" {
		return
	}
	if ev.BotID != "" || ev.Subtype != "" {
		return
	}
	if s.userID != "" && ev.User != s.userID {
		s.logger.Debug("ignoring DM from unexpected user", "user", ev.User)
		return
	}
	if ev.Text == "" {
		return
	}
	if !s.limiter.Allow() {
		s.logger.Warn("rate limit exceeded, dropping event", "user", ev.User)
		return
	}

	go s.process(ev)
}

func (s *Server) process(ev slackEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s.logger.Info("processing message", "channel", ev.Channel)
	reply, err := s.assistant.HandleMessage(ctx, ev.Text)
	if err != nil {
		s.logger.Error("message handling failed", "error", err)
		reply = "Sorry, I hit an error processing that. It's been logged."
	}
	if reply == "" {
		return
	}
	if err := s.poster.Post(ctx, ev.Channel, reply); err != nil {
		s.logger.Error("failed to post reply", "channel", ev.Channel, "error", err)
	}
}
