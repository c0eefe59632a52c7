package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/avilarec/morningbrief/internal/briefing"
	"github.com/avilarec/morningbrief/internal/graph"
	"github.com/avilarec/morningbrief/internal/memory"
)

type fakeLive struct {
	events    []graph.Event
	emails    []graph.Email
	calErr    error
	mailErr   error
	calCalls  int
	mailCalls int
}

func (f *fakeLive) CalendarView(context.Context, int) ([]graph.Event, error) {
	f.calCalls++
	return f.events, f.calErr
}

func (f *fakeLive) RecentEmails(context.Context, int, int) ([]graph.Email, error) {
	f.mailCalls++
	return f.emails, f.mailErr
}

type fakeReader struct {
	snap *memory.Snapshot
	err  error
}

func (f *fakeReader) Load() (*memory.Snapshot, error) { return f.snap, f.err }

type fakeAssembler struct {
	gotEvents []graph.Event
	gotEmails []graph.Email
}

func (f *fakeAssembler) Build(snap *memory.Snapshot, events []graph.Event, emails []graph.Email, _ time.Time) *briefing.Payload {
	f.gotEvents = events
	f.gotEmails = emails
	return &briefing.Payload{System: "sys", User: "user payload"}
}

type fakeGen struct {
	text  string
	err   error
	calls int
}

func (f *fakeGen) Generate(context.Context, string, string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeDeliverer struct {
	err   error
	calls int
	got   string
}

func (f *fakeDeliverer) Deliver(_ context.Context, text string) error {
	f.calls++
	f.got = text
	return f.err
}

func (f *fakeDeliverer) Name() string { return "fake" }

// logCapture records slog output for asserting degradation severity.
type logCapture struct {
	strings.Builder
}

func captureLogger(buf *logCapture) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestPipeline(live *fakeLive, reader *fakeReader, gen *fakeGen, del *fakeDeliverer, buf *logCapture) (*Pipeline, *fakeAssembler) {
	asm := &fakeAssembler{}
	opts := Options{Now: func() time.Time { return time.Date(2026, 8, 23, 7, 0, 0, 0, time.UTC) }}
	if buf != nil {
		opts.Logger = captureLogger(buf)
	}
	return New(reader, live, asm, gen, del, opts), asm
}

func okCollaborators() (*fakeLive, *fakeReader, *fakeGen, *fakeDeliverer) {
	return &fakeLive{events: []graph.Event{{Title: "standup"}}},
		&fakeReader{snap: &memory.Snapshot{}},
		&fakeGen{text: "your briefing"},
		&fakeDeliverer{}
}

func TestRun_HappyPath(t *testing.T) {
	live, reader, gen, del := okCollaborators()
	p, asm := newTestPipeline(live, reader, gen, del, nil)

	if p.State() != StateIdle {
		t.Fatalf("initial state = %s", p.State())
	}
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.State() != StateDone {
		t.Errorf("state = %s, want done", p.State())
	}
	if gen.calls != 1 || del.calls != 1 {
		t.Errorf("generate calls = %d, deliver calls = %d, want 1 each", gen.calls, del.calls)
	}
	if del.got != "your briefing" {
		t.Errorf("delivered %q", del.got)
	}
	if len(asm.gotEvents) != 1 {
		t.Errorf("assembler got %d events", len(asm.gotEvents))
	}
}

func TestRun_LiveDataFailureDegrades(t *testing.T) {
	live, reader, gen, del := okCollaborators()
	live.calErr = errors.New("graph timeout")
	live.mailErr = errors.New("graph timeout")

	var buf logCapture
	p, asm := newTestPipeline(live, reader, gen, del, &buf)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("live-data failure must not fail the run: %v", err)
	}
	if p.State() != StateDone {
		t.Errorf("state = %s, want done", p.State())
	}
	if del.calls != 1 {
		t.Error("briefing was not delivered")
	}
	if asm.gotEvents != nil || asm.gotEmails != nil {
		t.Errorf("assembler should see empty live data, got %d/%d", len(asm.gotEvents), len(asm.gotEmails))
	}
	logs := buf.String()
	if !strings.Contains(logs, "level=WARN") || !strings.Contains(logs, "calendar unavailable") {
		t.Errorf("degradation not logged at low severity:\n%s", logs)
	}
}

func TestRun_ReaderFailureIsFatal(t *testing.T) {
	live, _, gen, del := okCollaborators()
	reader := &fakeReader{err: errors.New("disk gone")}
	p, _ := newTestPipeline(live, reader, gen, del, nil)

	err := p.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if p.State() != StateFailed {
		t.Errorf("state = %s, want failed", p.State())
	}
	if !strings.Contains(err.Error(), "building context") {
		t.Errorf("error should name the stage: %v", err)
	}
	if gen.calls != 0 || del.calls != 0 {
		t.Error("downstream collaborators must not run after a fatal failure")
	}
}

func TestRun_GenerationFailureIsFatal(t *testing.T) {
	live, reader, _, del := okCollaborators()
	gen := &fakeGen{err: errors.New("provider 500")}
	p, _ := newTestPipeline(live, reader, gen, del, nil)

	err := p.Run(context.Background())
	if err == nil || p.State() != StateFailed {
		t.Fatalf("err = %v, state = %s", err, p.State())
	}
	if gen.calls != 1 {
		t.Errorf("generate calls = %d, want exactly 1 (no retry)", gen.calls)
	}
	if del.calls != 0 {
		t.Error("no partial message may be delivered")
	}
}

func TestRun_DeliveryFailureIsFatalNoRetry(t *testing.T) {
	live, reader, gen, _ := okCollaborators()
	del := &fakeDeliverer{err: errors.New("channel down")}

	var buf logCapture
	p, _ := newTestPipeline(live, reader, gen, del, &buf)

	err := p.Run(context.Background())
	if err == nil || p.State() != StateFailed {
		t.Fatalf("err = %v, state = %s", err, p.State())
	}
	if del.calls != 1 {
		t.Errorf("deliver calls = %d, want exactly 1 (no retry)", del.calls)
	}
	if got := strings.Count(buf.String(), "briefing run failed"); got != 1 {
		t.Errorf("failure reports = %d, want a single one", got)
	}
	if !strings.Contains(err.Error(), "delivering") {
		t.Errorf("error should name the stage: %v", err)
	}
}

func TestRun_SingleUse(t *testing.T) {
	live, reader, gen, del := okCollaborators()
	p, _ := newTestPipeline(live, reader, gen, del, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := p.Run(context.Background()); err == nil {
		t.Fatal("second run on the same pipeline must error")
	}
	if live.calCalls != 1 {
		t.Errorf("calendar fetched %d times", live.calCalls)
	}
}
