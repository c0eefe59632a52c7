// Package graph is a thin wrapper over the Microsoft Graph v1.0 API for
// calendar and mail reads. It is a collaborator of the briefing pipeline:
// failures here are non-fatal and degrade the briefing to memory-only data.
package graph

import "time"

// Event is one calendar entry in the look-ahead window.
type Event struct {
	Title     string
	Start     time.Time
	End       time.Time
	AllDay    bool
	Location  string
	Organizer string
	Attendees []string // display names, capped at 8
	Preview   string   // body preview, capped at 200 chars
}

// Email is one recent inbox message.
type Email struct {
	From           string
	FromEmail      string
	Subject        string
	Received       time.Time
	Preview        string // capped at 300 chars
	Unread         bool
	HasAttachments bool
}
