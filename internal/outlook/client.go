package outlook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "meetlens/internal/log"
	"meetlens/internal/model"
)

const (
	// BatchDays is the widest window requested in one calendarview call.
	BatchDays = 30

	defaultMaxAttempts = 3
	defaultTimeout     = 30 * time.Second
	pageSize           = 1000
	selectFields       = "subject,start,end,location,organizer,attendees,bodyPreview,isAllDay,id"
)

// APIError is a non-retryable or final non-2xx response.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return "outlook: API error " + e.Status
	}
	return fmt.Sprintf("outlook: API error %s: %s", e.Status, e.Body)
}

// Client reads calendar events from the Outlook REST v2 calendarview
// endpoint.
type Client struct {
	baseURL     string
	http        *http.Client
	tokens      TokenSource
	maxAttempts int
	backoff     func(attempt int) time.Duration
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			h := *c.http
			h.Timeout = d
			c.http = &h
		}
	}
}

// WithBackoff replaces the delay before retry attempt n (1-based).
func WithBackoff(f func(attempt int) time.Duration) Option {
	return func(c *Client) { c.backoff = f }
}

func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: defaultTimeout},
		tokens:      tokens,
		maxAttempts: defaultMaxAttempts,
		backoff:     exponentialBackoff,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// exponentialBackoff waits 1s, 2s, 4s... capped at 10s.
func exponentialBackoff(attempt int) time.Duration {
	d := time.Second << (attempt - 1)
	if d > 10*time.Second || d <= 0 {
		return 10 * time.Second
	}
	return d
}

func (c *Client) Name() string { return "outlook" }

// FetchMeetings fetches and normalizes the events of [start, end].
func (c *Client) FetchMeetings(ctx context.Context, start, end time.Time) ([]model.Meeting, error) {
	events, err := c.FetchEvents(ctx, start, end)
	if err != nil {
		return nil, err
	}
	meetings := make([]model.Meeting, 0, len(events))
	for _, ev := range events {
		m, err := ev.Meeting()
		if err != nil {
			appLog.Warn("outlook event skipped", "id", ev.ID, "cause", err)
			continue
		}
		meetings = append(meetings, m)
	}
	return meetings, nil
}

// FetchEvents returns the raw events of [start, end]. Windows wider than
// BatchDays are split into contiguous batches; every page of every batch is
// read or the call fails. An event overlapping two batches is returned once.
func (c *Client) FetchEvents(ctx context.Context, start, end time.Time) ([]Event, error) {
	if c.baseURL == "" {
		return nil, errors.New("outlook: REST base URL not configured")
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	var all []Event
	seen := make(map[string]bool)
	for _, w := range Batches(start, end, BatchDays) {
		events, err := c.fetchWindow(ctx, token, w[0], w[1])
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
				if inv, ok := c.tokens.(interface{ Invalidate() }); ok {
					inv.Invalidate()
				}
			}
			return nil, err
		}
		for _, ev := range events {
			if ev.ID != "" {
				if seen[ev.ID] {
					continue
				}
				seen[ev.ID] = true
			}
			all = append(all, ev)
		}
	}
	appLog.Debug("outlook events fetched", "count", len(all), "start", start.Format(time.DateOnly), "end", end.Format(time.DateOnly))
	return all, nil
}

// Batches splits [start, end) into contiguous windows of at most days days.
func Batches(start, end time.Time, days int) [][2]time.Time {
	var out [][2]time.Time
	for cur := start; cur.Before(end); {
		next := cur.AddDate(0, 0, days)
		if next.After(end) {
			next = end
		}
		out = append(out, [2]time.Time{cur, next})
		cur = next
	}
	return out
}

type page struct {
	Value    []Event `json:"value"`
	NextLink string  `json:"@odata.nextLink"`
}

func (c *Client) fetchWindow(ctx context.Context, token string, start, end time.Time) ([]Event, error) {
	q := url.Values{}
	q.Set("startDateTime", start.UTC().Format(time.RFC3339))
	q.Set("endDateTime", end.UTC().Format(time.RFC3339))
	q.Set("$select", selectFields)
	q.Set("$top", fmt.Sprint(pageSize))
	link := c.baseURL + "/v2.0/me/calendarview?" + q.Encode()

	var events []Event
	for link != "" {
		var p page
		if err := c.getJSON(ctx, link, token, &p); err != nil {
			return nil, err
		}
		events = append(events, p.Value...)
		link = p.NextLink
	}
	return events, nil
}

// getJSON performs a GET, retrying network errors, 5xx and 429.
func (c *Client) getJSON(ctx context.Context, link, token string, dst any) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}

		retry, err := c.doGet(ctx, link, token, dst)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			return err
		}
		appLog.Warn("outlook request failed, retrying", "attempt", attempt, "cause", err)
	}
	return fmt.Errorf("outlook: giving up after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) doGet(ctx context.Context, link, token string, dst any) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

	resp, err := c.http.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(body))}
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return retryable, apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return false, fmt.Errorf("outlook: decode response: %w", err)
	}
	return false, nil
}
