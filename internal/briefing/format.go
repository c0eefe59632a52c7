package briefing

import (
	"fmt"
	"strings"
	"time"

	"github.com/avilarec/morningbrief/internal/graph"
	"github.com/avilarec/morningbrief/internal/memory"
)

const (
	clockLayout  = "3:04 PM"
	peopleBioCap = 300
)

func (a *Assembler) render(snap *memory.Snapshot, events []graph.Event, emails []graph.Email, inbox []string, people []memory.PersonNote, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Today is %s. Current time: %s %s.\n\n",
		now.Format("Monday, January 2, 2006"), now.Format(clockLayout), now.Format("MST"))

	b.WriteString("=== TODAY'S CALENDAR ===\n")
	b.WriteString(formatEvents(events))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "=== RECENT EMAILS (past %d hours) ===\n", a.emailScanHours)
	b.WriteString(formatEmails(emails))
	b.WriteString("\n\n")

	b.WriteString("=== OPEN TASKS ===\n")
	b.WriteString(formatTasks(snap.TaskCategories))
	b.WriteString("\n\n")

	b.WriteString("=== INBOX CAPTURE QUEUE ===\n")
	if len(inbox) == 0 {
		b.WriteString("Empty.")
	} else {
		b.WriteString(strings.Join(inbox, "\n"))
	}
	b.WriteString("\n\n")

	for _, cf := range snap.Context {
		fmt.Fprintf(&b, "=== %s ===\n", strings.ToUpper(cf.Name))
		b.WriteString(strings.TrimRight(cf.Content, "\n"))
		b.WriteString("\n\n")
	}

	if len(people) > 0 {
		b.WriteString("=== PEOPLE CONTEXT ===\n")
		b.WriteString(formatPeople(people))
		b.WriteString("\n\n")
	}

	b.WriteString("Please deliver the morning briefing for today.")
	return b.String()
}

func formatEvents(events []graph.Event) string {
	if len(events) == 0 {
		return "No calendar events today."
	}
	var lines []string
	for _, e := range events {
		if e.AllDay {
			lines = append(lines, "- ALL DAY: "+e.Title)
			continue
		}
		att := ""
		if len(e.Attendees) > 0 {
			names := e.Attendees
			extra := ""
			if len(names) > 4 {
				extra = fmt.Sprintf(" +%d others", len(names)-4)
				names = names[:4]
			}
			att = " with " + strings.Join(names, ", ") + extra
		}
		loc := ""
		if e.Location != "" {
			loc = " @ " + e.Location
		}
		lines = append(lines, fmt.Sprintf("- %s – %s: %s%s%s",
			e.Start.Format(clockLayout), e.End.Format(clockLayout), e.Title, att, loc))
		if preview := strings.TrimSpace(e.Preview); preview != "" {
			lines = append(lines, "  "+capLine(preview, 150))
		}
	}
	return strings.Join(lines, "\n")
}

func formatEmails(emails []graph.Email) string {
	if len(emails) == 0 {
		return "No recent emails."
	}
	var lines []string
	for _, m := range emails {
		unread := ""
		if m.Unread {
			unread = "[UNREAD] "
		}
		att := ""
		if m.HasAttachments {
			att = " [attachment]"
		}
		lines = append(lines, fmt.Sprintf("- %sFROM: %s | %s%s", unread, m.From, m.Subject, att))
		if preview := strings.TrimSpace(m.Preview); preview != "" {
			lines = append(lines, "  "+capLine(preview, 200))
		}
	}
	return strings.Join(lines, "\n")
}

func formatTasks(categories []memory.TaskCategory) string {
	if len(categories) == 0 {
		return "No open tasks."
	}
	var lines []string
	for _, c := range categories {
		if len(c.Tasks) == 0 {
			continue
		}
		lines = append(lines, "", c.Name+":")
		for _, t := range c.Tasks {
			lines = append(lines, "  - "+t)
		}
	}
	if len(lines) == 0 {
		return "No open tasks."
	}
	return strings.TrimPrefix(strings.Join(lines, "\n"), "\n")
}

func formatPeople(people []memory.PersonNote) string {
	lines := []string{"Relevant people in today's meetings:"}
	for _, p := range people {
		lines = append(lines, "", p.Name+":", capLine(p.Content, peopleBioCap))
	}
	return strings.Join(lines, "\n")
}

// flattenTodayAttendees joins, lowercased, the attendee names of events
// whose start falls on the same local date as now.
func flattenTodayAttendees(events []graph.Event, now time.Time) string {
	var parts []string
	ny, nm, nd := now.Date()
	for _, e := range events {
		ey, em, ed := e.Start.Date()
		if ey != ny || em != nm || ed != nd {
			continue
		}
		for _, a := range e.Attendees {
			parts = append(parts, strings.ToLower(a))
		}
	}
	return strings.Join(parts, " ")
}

// nameMatches reports whether any word of name appears in the flattened,
// lowercased attendee text.
func nameMatches(name, attendeesFlat string) bool {
	for _, part := range strings.Fields(strings.ToLower(name)) {
		if strings.Contains(attendeesFlat, part) {
			return true
		}
	}
	return false
}

func capLine(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
