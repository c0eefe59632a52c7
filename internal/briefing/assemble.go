// Package briefing assembles the memory snapshot and live calendar/email
// data into one bounded, ordered context payload for the generation call.
//
// The section order is fixed for reproducibility: schedule, email action
// items, open tasks, inbox queue, auxiliary context, relevant people,
// closing instruction. Only literal, attributable data is passed along;
// relevance is decided by explicit attendee matches, never inferred.
package briefing

import (
	"log/slog"
	"time"

	"github.com/avilarec/morningbrief/internal/graph"
	"github.com/avilarec/morningbrief/internal/memory"
)

// Assembler builds payloads under a token budget.
type Assembler struct {
	persona        Persona
	counter        TokenCounter
	budget         int // total tokens across system + user text; 0 disables
	emailScanHours int
}

// NewAssembler creates an assembler. budget <= 0 disables enforcement.
func NewAssembler(persona Persona, counter TokenCounter, budget, emailScanHours int) *Assembler {
	if counter == nil {
		counter = CharCounter{}
	}
	if emailScanHours <= 0 {
		emailScanHours = 18
	}
	return &Assembler{
		persona:        persona,
		counter:        counter,
		budget:         budget,
		emailScanHours: emailScanHours,
	}
}

// Payload is the merged, budget-constrained text handed to generation.
type Payload struct {
	System string
	User   string

	// Dropped records what was removed to satisfy the budget, for logs
	// and tests. Empty when everything fit.
	Dropped []string
}

// Build produces the payload deterministically from its inputs: the same
// snapshot, live data, and clock always yield the same text.
//
// When over budget, the lowest-priority section goes first: person context,
// then inbox items oldest-first. Schedule and task data are never truncated
// here; if they alone exceed the budget the payload is returned over budget
// with a warning, since a too-long briefing beats a silently gutted one.
func (a *Assembler) Build(snap *memory.Snapshot, events []graph.Event, emails []graph.Email, now time.Time) *Payload {
	system := SystemPrompt(a.persona)
	people := relevantPeople(snap.People, events, now)
	inbox := append([]string(nil), snap.InboxItems...)

	p := &Payload{System: system}
	for {
		p.User = a.render(snap, events, emails, inbox, people, now)
		if a.budget <= 0 {
			return p
		}
		total := a.counter.Count(system) + a.counter.Count(p.User)
		if total <= a.budget {
			return p
		}

		switch {
		case len(people) > 0:
			slog.Warn("context over budget, dropping person context",
				"tokens", total, "budget", a.budget, "people", len(people))
			p.Dropped = append(p.Dropped, "people")
			people = nil
		case len(inbox) > 0:
			p.Dropped = append(p.Dropped, "inbox:"+inbox[0])
			inbox = inbox[1:]
		default:
			slog.Warn("context still over budget; schedule and tasks are never truncated",
				"tokens", total, "budget", a.budget)
			return p
		}
	}
}

// relevantPeople returns notes only for people explicitly named as
// attendees of an event on the run's date. Matching is literal: any word
// of the person's display name appearing in the attendee list.
func relevantPeople(people []memory.PersonNote, events []graph.Event, now time.Time) []memory.PersonNote {
	if len(people) == 0 || len(events) == 0 {
		return nil
	}

	attendeesFlat := flattenTodayAttendees(events, now)
	if attendeesFlat == "" {
		return nil
	}

	var relevant []memory.PersonNote
	for _, p := range people {
		if nameMatches(p.Name, attendeesFlat) {
			relevant = append(relevant, p)
		}
	}
	return relevant
}
