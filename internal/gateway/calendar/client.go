// Package calendar is a thin client for the Google Calendar v3 events API.
// The gateway forwards what the provider returns; it does no free/busy
// interval math of its own.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scope covers event reads and writes on the coaching calendar.
const Scope = "https://www.googleapis.com/auth/calendar.events"

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

// ErrNotFound reports an event the calendar doesn't have.
var ErrNotFound = errors.New("calendar: event not found")

// Client talks to the Calendar API with service-account credentials,
// always against one configured calendar.
type Client struct {
	httpClient *http.Client
	baseURL    string
	calendarID string
}

// NewClient builds a client using Application Default Credentials.
func NewClient(ctx context.Context, calendarID string) (*Client, error) {
	ts, err := google.DefaultTokenSource(ctx, Scope)
	if err != nil {
		return nil, fmt.Errorf("calendar: credentials: %w", err)
	}
	return &Client{
		httpClient: oauth2.NewClient(ctx, ts),
		baseURL:    defaultBaseURL,
		calendarID: calendarID,
	}, nil
}

// NewClientWithHTTP builds a client against an arbitrary endpoint with a
// pre-authorized http.Client. Used by tests to point at a fake Calendar.
func NewClientWithHTTP(httpClient *http.Client, baseURL, calendarID string) *Client {
	return &Client{httpClient: httpClient, baseURL: baseURL, calendarID: calendarID}
}

// Booking is the reshaped view of a calendar event the app consumes.
type Booking struct {
	ID         string `json:"id"`
	Summary    string `json:"summary,omitempty"`
	Start      string `json:"start,omitempty"`
	End        string `json:"end,omitempty"`
	MeetingURL string `json:"meetingUrl,omitempty"`
	Location   string `json:"location,omitempty"`
	Status     string `json:"status,omitempty"`
}

// BookingRequest describes an event to create.
type BookingRequest struct {
	Start         string // RFC 3339
	End           string // RFC 3339
	AttendeeEmail string
	AttendeeName  string
	Location      string
	WithMeet      bool
}

// BusyInterval is one provider-reported busy window, passed through
// verbatim.
type BusyInterval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ListUpcoming returns future events on the calendar, reshaped, soonest
// first.
func (c *Client) ListUpcoming(ctx context.Context, maxResults int) ([]Booking, error) {
	params := url.Values{}
	params.Set("timeMin", time.Now().UTC().Format(time.RFC3339))
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")
	params.Set("maxResults", strconv.Itoa(maxResults))

	body, err := c.do(ctx, http.MethodGet, c.eventsURL("")+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var bookings []Booking
	for _, ev := range gjson.GetBytes(body, "items").Array() {
		b := reshapeEvent(ev)
		// Drop all-day stubs without usable bounds.
		if b.Start == "" || b.End == "" {
			continue
		}
		bookings = append(bookings, b)
	}
	return bookings, nil
}

// CreateBooking inserts an event, optionally requesting a Meet link.
func (c *Client) CreateBooking(ctx context.Context, req BookingRequest) (Booking, error) {
	type dateTime struct {
		DateTime string `json:"dateTime"`
	}
	type attendee struct {
		Email          string `json:"email"`
		DisplayName    string `json:"displayName,omitempty"`
		ResponseStatus string `json:"responseStatus,omitempty"`
	}

	event := map[string]any{
		"summary":               "InnerPeace Session",
		"description":           "Coaching session",
		"start":                 dateTime{DateTime: req.Start},
		"end":                   dateTime{DateTime: req.End},
		"guestsCanModify":       false,
		"guestsCanInviteOthers": false,
		"transparency":          "opaque",
	}
	if req.AttendeeName != "" {
		event["description"] = "Coaching session with " + req.AttendeeName
	}
	if req.AttendeeEmail != "" {
		event["attendees"] = []attendee{{Email: req.AttendeeEmail, DisplayName: req.AttendeeName}}
	}

	u := c.eventsURL("")
	if req.WithMeet {
		event["conferenceData"] = map[string]any{
			"createRequest": map[string]any{
				"requestId": fmt.Sprintf("meet-%d", time.Now().UnixNano()),
			},
		}
		u += "?conferenceDataVersion=1"
	} else if req.Location != "" {
		event["location"] = req.Location
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return Booking{}, err
	}

	body, err := c.do(ctx, http.MethodPost, u, payload)
	if err != nil {
		return Booking{}, err
	}

	return reshapeEvent(gjson.ParseBytes(body)), nil
}

// CancelBooking deletes an event.
func (c *Client) CancelBooking(ctx context.Context, eventID string) error {
	_, err := c.do(ctx, http.MethodDelete, c.eventsURL(eventID), nil)
	return err
}

// FreeBusy returns the calendar's busy intervals for the window, exactly as
// the provider reports them.
func (c *Client) FreeBusy(ctx context.Context, timeMin, timeMax string) ([]BusyInterval, error) {
	payload, err := json.Marshal(map[string]any{
		"timeMin": timeMin,
		"timeMax": timeMax,
		"items":   []map[string]string{{"id": c.calendarID}},
	})
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/freeBusy", payload)
	if err != nil {
		return nil, err
	}

	entry := gjson.GetBytes(body, "calendars."+gjsonEscape(c.calendarID)+".busy")
	intervals := []BusyInterval{}
	for _, busy := range entry.Array() {
		start := busy.Get("start").String()
		end := busy.Get("end").String()
		if start == "" || end == "" {
			continue
		}
		intervals = append(intervals, BusyInterval{Start: start, End: end})
	}
	return intervals, nil
}

func (c *Client) eventsURL(eventID string) string {
	u := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(c.calendarID))
	if eventID != "" {
		u += "/" + url.PathEscape(eventID)
	}
	return u
}

func (c *Client) do(ctx context.Context, method, u string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar: request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("calendar: unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

// reshapeEvent maps a raw event into a Booking, preferring the Meet link
// over other conference entry points.
func reshapeEvent(ev gjson.Result) Booking {
	meetURL := ev.Get("hangoutLink").String()
	if meetURL == "" {
		for _, ep := range ev.Get("conferenceData.entryPoints").Array() {
			if ep.Get("entryPointType").String() == "video" {
				meetURL = ep.Get("uri").String()
				break
			}
		}
	}

	status := ev.Get("status").String()
	if status == "" {
		status = "confirmed"
	}

	return Booking{
		ID:         ev.Get("id").String(),
		Summary:    ev.Get("summary").String(),
		Start:      firstOf(ev, "start.dateTime", "start.date"),
		End:        firstOf(ev, "end.dateTime", "end.date"),
		MeetingURL: meetURL,
		Location:   ev.Get("location").String(),
		Status:     status,
	}
}

func firstOf(ev gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := ev.Get(p); v.Exists() {
			return v.String()
		}
	}
	return ""
}

// gjsonEscape protects dots in calendar IDs (they're email addresses) from
// being read as path separators.
func gjsonEscape(s string) string {
	return strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`).Replace(s)
}
