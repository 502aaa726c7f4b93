package taskflowsdk

import (
	"bytes"
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

// Client is a minimal taskflow HTTP API client for the time tracking
// endpoints.
type Client struct {
	// BaseURL includes the API base path, e.g. http://localhost:8080/api.
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Timeout:    10 * time.Second,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// TimeLog represents the API time log model.
type TimeLog struct {
	ID                string  `json:"id"`
	CardID            string  `json:"card_id"`
	SubtaskID         *string `json:"subtask_id,omitempty"`
	UserID            string  `json:"user_id"`
	StartTime         string  `json:"start_time"`
	EndTime           *string `json:"end_time,omitempty"`
	DurationMinutes   int     `json:"duration_minutes"`
	Description       string  `json:"description,omitempty"`
	CardTitle         string  `json:"card_title,omitempty"`
	SubtaskName       string  `json:"subtask_name,omitempty"`
	FormattedDuration string  `json:"formatted_duration,omitempty"`
}

// Started parses StartTime.
func (l TimeLog) Started() (time.Time, error) {
	return time.Parse(time.RFC3339, l.StartTime)
}

type StartResult struct {
	TimeLog       TimeLog `json:"time_log"`
	CardTitle     string  `json:"card_title"`
	BoardName     string  `json:"board_name"`
	SubtaskName   string  `json:"subtask_name,omitempty"`
	CardStatus    string  `json:"card_status"`
	SubtaskStatus string  `json:"subtask_status,omitempty"`
}

type StopResult struct {
	TimeLog           TimeLog `json:"time_log"`
	FormattedDuration string  `json:"formatted_duration"`
	CardActualHours   float64 `json:"card_actual_hours"`
}

type Totals struct {
	TotalMinutes      int     `json:"total_minutes"`
	TotalHours        float64 `json:"total_hours"`
	FormattedDuration string  `json:"formatted_duration"`
	LogCount          int     `json:"log_count"`
}

type TimeLogPage struct {
	Items       []TimeLog `json:"items"`
	Total       int       `json:"total"`
	CurrentPage int       `json:"current_page"`
	PerPage     int       `json:"per_page"`
	LastPage    int       `json:"last_page"`
}

// ListOptions filters ListTimeLogs. Zero values are omitted.
type ListOptions struct {
	Status    string
	CardID    string
	SubtaskID string
	Page      int
	PerPage   int
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
	Data       json.RawMessage
	Errors     map[string][]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
}

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
}

// StartTimer starts tracking the card, or the subtask when subtaskID is set.
func (c *Client) StartTimer(ctx context.Context, cardID, subtaskID, description string) (StartResult, error) {
	body := map[string]string{}
	if cardID != "" {
		body["card_id"] = cardID
	}
	if subtaskID != "" {
		body["subtask_id"] = subtaskID
	}
	if description != "" {
		body["description"] = description
	}
	var resp StartResult
	err := c.do(ctx, http.MethodPost, "time-logs/start", body, &resp)
	return resp, err
}

// StopTimer stops a running log. A nil description keeps the stored one.
func (c *Client) StopTimer(ctx context.Context, logID string, description *string) (StopResult, error) {
	var body any
	if description != nil {
		body = map[string]string{"description": *description}
	}
	var resp StopResult
	err := c.do(ctx, http.MethodPost, "time-logs/"+url.PathEscape(logID)+"/stop", body, &resp)
	return resp, err
}

// Ongoing returns the caller's running log, or nil.
func (c *Client) Ongoing(ctx context.Context) (*TimeLog, error) {
	var resp *TimeLog
	err := c.do(ctx, http.MethodGet, "time-logs/ongoing", nil, &resp)
	return resp, err
}

// ListTimeLogs returns a page of the caller's logs.
func (c *Client) ListTimeLogs(ctx context.Context, opts ListOptions) (TimeLogPage, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.CardID != "" {
		q.Set("card_id", opts.CardID)
	}
	if opts.SubtaskID != "" {
		q.Set("subtask_id", opts.SubtaskID)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(opts.PerPage))
	}
	endpoint := "time-logs"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp TimeLogPage
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// UpdateTimeLog replaces the description of a completed log.
func (c *Client) UpdateTimeLog(ctx context.Context, logID, description string) (TimeLog, error) {
	var resp TimeLog
	err := c.do(ctx, http.MethodPut, "time-logs/"+url.PathEscape(logID), map[string]string{"description": description}, &resp)
	return resp, err
}

func (c *Client) DeleteTimeLog(ctx context.Context, logID string) error {
	return c.do(ctx, http.MethodDelete, "time-logs/"+url.PathEscape(logID), nil, nil)
}

// CardTotal sums completed logs on a card.
func (c *Client) CardTotal(ctx context.Context, cardID string) (Totals, error) {
	var resp Totals
	err := c.do(ctx, http.MethodGet, "time-logs/card/"+url.PathEscape(cardID)+"/total", nil, &resp)
	return resp, err
}

// SubtaskTotal sums completed logs on a subtask.
func (c *Client) SubtaskTotal(ctx context.Context, subtaskID string) (Totals, error) {
	var resp Totals
	err := c.do(ctx, http.MethodGet, "time-logs/subtask/"+url.PathEscape(subtaskID)+"/total", nil, &resp)
	return resp, err
}

// SetCardStatus moves a card; promotion fails with an APIError carrying the
// unfinished subtasks in Data.
func (c *Client) SetCardStatus(ctx context.Context, cardID, status string) error {
	return c.do(ctx, http.MethodPost, "cards/status", map[string]string{"card_id": cardID, "status": status}, nil)
}

func (c *Client) SetSubtaskStatus(ctx context.Context, subtaskID, status string) error {
	return c.do(ctx, http.MethodPost, "subtasks/status", map[string]string{"subtask_id": subtaskID, "status": status}, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message, Data: env.Data, Errors: env.Errors}
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
