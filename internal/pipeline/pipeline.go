// Package pipeline orchestrates one briefing run: read memory, fetch live
// data, assemble context, generate, deliver. Strictly sequential, one
// short-lived run per invocation, no internal retries; a missed day beats
// a silently wrong one.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avilarec/morningbrief/internal/briefing"
	"github.com/avilarec/morningbrief/internal/graph"
	"github.com/avilarec/morningbrief/internal/memory"
)

// State is the pipeline's position in the run.
type State string

// Pipeline states. Failed is terminal and reachable from any non-terminal
// state; the happy path is strictly sequential.
const (
	StateIdle             State = "idle"
	StateFetchingLiveData State = "fetching_live_data"
	StateBuildingContext  State = "building_context"
	StateGenerating       State = "generating"
	StateDelivering       State = "delivering"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// LiveData supplies calendar events and recent emails. Failures are
// non-fatal: the run degrades to memory-only data.
type LiveData interface {
	CalendarView(ctx context.Context, daysAhead int) ([]graph.Event, error)
	RecentEmails(ctx context.Context, hoursBack, maxResults int) ([]graph.Email, error)
}

// SnapshotLoader reads the memory store.
type SnapshotLoader interface {
	Load() (*memory.Snapshot, error)
}

// ContextBuilder merges the snapshot with live data into a payload.
type ContextBuilder interface {
	Build(snap *memory.Snapshot, events []graph.Event, emails []graph.Email, now time.Time) *briefing.Payload
}

// Generator produces the briefing text. Failures are fatal for the run.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Deliverer sends the briefing to the recipient. Failures are fatal.
type Deliverer interface {
	Deliver(ctx context.Context, text string) error
	Name() string
}

// Options are the live-data windows and the clock.
type Options struct {
	CalendarDaysAhead int
	EmailScanHours    int
	EmailMaxResults   int

	// Now supplies the run's clock; defaults to time.Now. Injected so the
	// assembled payload is reproducible in tests.
	Now func() time.Time

	Logger *slog.Logger
}

// Pipeline wires the collaborators for one run.
type Pipeline struct {
	reader    SnapshotLoader
	live      LiveData
	assembler ContextBuilder
	gen       Generator
	deliverer Deliverer
	opts      Options

	state State
}

// New creates a pipeline in the Idle state.
func New(reader SnapshotLoader, live LiveData, assembler ContextBuilder, gen Generator, deliverer Deliverer, opts Options) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CalendarDaysAhead <= 0 {
		opts.CalendarDaysAhead = 1
	}
	if opts.EmailScanHours <= 0 {
		opts.EmailScanHours = 18
	}
	if opts.EmailMaxResults <= 0 {
		opts.EmailMaxResults = 15
	}
	return &Pipeline{
		reader:    reader,
		live:      live,
		assembler: assembler,
		gen:       gen,
		deliverer: deliverer,
		opts:      opts,
		state:     StateIdle,
	}
}

// State returns the pipeline's current state.
func (p *Pipeline) State() State { return p.state }

// Run executes one briefing end to end. It can only start from Idle; a
// pipeline is single-use, matching the one-process-per-day model.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.state != StateIdle {
		return fmt.Errorf("pipeline: run already started (state %s)", p.state)
	}

	runID := uuid.NewString()[:8]
	log := p.opts.Logger.With("run", runID)
	log.Info("briefing run starting")

	// Live-data failures degrade; a partial briefing beats none.
	p.state = StateFetchingLiveData
	events, err := p.live.CalendarView(ctx, p.opts.CalendarDaysAhead)
	if err != nil {
		log.Warn("calendar unavailable, continuing without it", "error", err)
		events = nil
	} else {
		log.Info("calendar fetched", "events", len(events))
	}
	emails, err := p.live.RecentEmails(ctx, p.opts.EmailScanHours, p.opts.EmailMaxResults)
	if err != nil {
		log.Warn("email unavailable, continuing without it", "error", err)
		emails = nil
	} else {
		log.Info("email fetched", "messages", len(emails))
	}

	p.state = StateBuildingContext
	snap, err := p.reader.Load()
	if err != nil {
		return p.fail(log, "building context", err)
	}
	log.Info("memory loaded", "snapshot", snap.Describe())
	payload := p.assembler.Build(snap, events, emails, p.opts.Now())
	if len(payload.Dropped) > 0 {
		log.Warn("context trimmed to budget", "dropped", payload.Dropped)
	}

	p.state = StateGenerating
	text, err := p.gen.Generate(ctx, payload.System, payload.User)
	if err != nil {
		return p.fail(log, "generating", err)
	}
	log.Info("briefing generated", "chars", len(text))

	p.state = StateDelivering
	if err := p.deliverer.Deliver(ctx, text); err != nil {
		return p.fail(log, "delivering", err)
	}

	p.state = StateDone
	log.Info("briefing delivered", "channel", p.deliverer.Name())
	return nil
}

// fail moves to the terminal Failed state and surfaces one clear report.
// No retry: retries are an external scheduling concern.
func (p *Pipeline) fail(log *slog.Logger, stage string, err error) error {
	p.state = StateFailed
	log.Error("briefing run failed", "stage", stage, "error", err)
	return fmt.Errorf("briefing failed while %s: %w", stage, err)
}
