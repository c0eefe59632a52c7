package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://graph.microsoft.com/v1.0"

	attendeeCap     = 8
	eventPreviewCap = 200
	emailPreviewCap = 300
)

// TokenSource supplies a bearer token per request. OAuth mechanics
// (device flow, refresh) live outside this package.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource around a fixed token string.
type StaticToken string

// Token returns the fixed token.
func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("graph: no access token configured")
	}
	return string(s), nil
}

// Client fetches calendar events and emails for one user.
type Client struct {
	baseURL string
	userID  string
	tokens  TokenSource
	http    *http.Client
	loc     *time.Location
}

// NewClient creates a Graph client. baseURL may be empty for the production
// endpoint; loc is the local timezone events are reported in.
func NewClient(baseURL, userID string, tokens TokenSource, loc *time.Location) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		tokens:  tokens,
		http:    &http.Client{Timeout: 30 * time.Second},
		loc:     loc,
	}
}

type graphEvent struct {
	Subject string `json:"subject"`
	Start   struct {
		DateTime string `json:"dateTime"`
	} `json:"start"`
	End struct {
		DateTime string `json:"dateTime"`
	} `json:"end"`
	Location struct {
		DisplayName string `json:"displayName"`
	} `json:"location"`
	Organizer struct {
		EmailAddress graphAddress `json:"emailAddress"`
	} `json:"organizer"`
	Attendees []struct {
		EmailAddress graphAddress `json:"emailAddress"`
	} `json:"attendees"`
	BodyPreview string `json:"bodyPreview"`
	IsAllDay    bool   `json:"isAllDay"`
}

type graphMessage struct {
	Subject string `json:"subject"`
	From    struct {
		EmailAddress graphAddress `json:"emailAddress"`
	} `json:"from"`
	ReceivedDateTime string `json:"receivedDateTime"`
	BodyPreview      string `json:"bodyPreview"`
	HasAttachments   bool   `json:"hasAttachments"`
	IsRead           bool   `json:"isRead"`
}

type graphAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// CalendarView returns events from local midnight today through daysAhead
// days, ordered by start time.
func (c *Client) CalendarView(ctx context.Context, daysAhead int) ([]Event, error) {
	if daysAhead <= 0 {
		daysAhead = 1
	}
	now := time.Now().In(c.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)
	end := start.AddDate(0, 0, daysAhead)

	q := url.Values{
		"startDateTime": {start.Format(time.RFC3339)},
		"endDateTime":   {end.Format(time.RFC3339)},
		"$select":       {"subject,start,end,location,organizer,attendees,bodyPreview,isAllDay"},
		"$orderby":      {"start/dateTime"},
		"$top":          {"25"},
	}

	var payload struct {
		Value []graphEvent `json:"value"`
	}
	if err := c.get(ctx, "/users/"+c.userID+"/calendarView", q, &payload); err != nil {
		return nil, fmt.Errorf("calendar view: %w", err)
	}

	events := make([]Event, 0, len(payload.Value))
	for _, e := range payload.Value {
		startAt, err := ParseGraphTime(e.Start.DateTime, c.loc)
		if err != nil {
			return nil, fmt.Errorf("event %q start: %w", e.Subject, err)
		}
		endAt, err := ParseGraphTime(e.End.DateTime, c.loc)
		if err != nil {
			return nil, fmt.Errorf("event %q end: %w", e.Subject, err)
		}

		var attendees []string
		for _, a := range e.Attendees {
			name := a.EmailAddress.Name
			if name == "" {
				name = a.EmailAddress.Address
			}
			if name == "" {
				continue
			}
			attendees = append(attendees, name)
			if len(attendees) == attendeeCap {
				break
			}
		}

		title := e.Subject
		if title == "" {
			title = "Untitled"
		}
		events = append(events, Event{
			Title:     title,
			Start:     startAt,
			End:       endAt,
			AllDay:    e.IsAllDay,
			Location:  e.Location.DisplayName,
			Organizer: e.Organizer.EmailAddress.Name,
			Attendees: attendees,
			Preview:   capRunes(e.BodyPreview, eventPreviewCap),
		})
	}
	return events, nil
}

// RecentEmails returns inbox messages received within the past hoursBack
// hours, newest first, capped at maxResults. Drafts are excluded.
func (c *Client) RecentEmails(ctx context.Context, hoursBack, maxResults int) ([]Email, error) {
	if hoursBack <= 0 {
		hoursBack = 18
	}
	if maxResults <= 0 {
		maxResults = 15
	}
	since := time.Now().UTC().Add(-time.Duration(hoursBack) * time.Hour).Format("2006-01-02T15:04:05Z")

	q := url.Values{
		"$select":  {"subject,from,receivedDateTime,bodyPreview,hasAttachments,isRead"},
		"$orderby": {"receivedDateTime desc"},
		"$top":     {strconv.Itoa(maxResults)},
		"$filter":  {fmt.Sprintf("receivedDateTime ge %s and isDraft eq false", since)},
	}

	var payload struct {
		Value []graphMessage `json:"value"`
	}
	if err := c.get(ctx, "/users/"+c.userID+"/mailFolders/Inbox/messages", q, &payload); err != nil {
		return nil, fmt.Errorf("recent emails: %w", err)
	}

	emails := make([]Email, 0, len(payload.Value))
	for _, m := range payload.Value {
		received, err := ParseGraphTime(m.ReceivedDateTime, c.loc)
		if err != nil {
			return nil, fmt.Errorf("email %q received: %w", m.Subject, err)
		}

		from := m.From.EmailAddress.Name
		if from == "" {
			from = "Unknown"
		}
		subject := m.Subject
		if subject == "" {
			subject = "(no subject)"
		}
		emails = append(emails, Email{
			From:           from,
			FromEmail:      m.From.EmailAddress.Address,
			Subject:        subject,
			Received:       received,
			Preview:        capRunes(m.BodyPreview, emailPreviewCap),
			Unread:         !m.IsRead,
			HasAttachments: m.HasAttachments,
		})
	}
	return emails, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("graph %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ParseGraphTime parses Graph datetime strings, which carry up to 7
// fractional-second digits and arrive as UTC without an explicit zone.
func ParseGraphTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSuffix(s, "Z")
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC().In(loc), nil
}

func capRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
