// Package holiday syncs national and state holidays from the
// invertexto API into PostgreSQL, where scheduler validation checks
// them.
package holiday

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Holiday is one entry of the feed. Level distinguishes national from
// state holidays.
type Holiday struct {
	Date  time.Time `json:"date"`
	Name  string    `json:"name"`
	Type  string    `json:"type"`
	Level string    `json:"level"`
}

type wireHoliday struct {
	Date  string `json:"date"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Level string `json:"level"`
}

// Client fetches holidays from the invertexto API.
type Client struct {
	baseURL string
	token   string
	state   string
	http    *http.Client
}

// NewClient builds a client. state is optional; when set the feed also
// includes that state's holidays.
func NewClient(baseURL, token, state string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		state:   state,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchYear retrieves every holiday of the given year.
func (c *Client) FetchYear(ctx context.Context, year int) ([]Holiday, error) {
	endpoint := fmt.Sprintf("%s/v1/holidays/%d", c.baseURL, year)
	if c.state != "" {
		endpoint += "?state=" + url.QueryEscape(c.state)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching holidays: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holiday API returned status %d", resp.StatusCode)
	}

	var wire []wireHoliday
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding holidays: %w", err)
	}

	holidays := make([]Holiday, 0, len(wire))
	for _, w := range wire {
		date, err := time.Parse("2006-01-02", w.Date)
		if err != nil {
			return nil, fmt.Errorf("holiday %q has bad date %q: %w", w.Name, w.Date, err)
		}
		holidays = append(holidays, Holiday{Date: date, Name: w.Name, Type: w.Type, Level: w.Level})
	}
	return holidays, nil
}
