package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPSource reads busy events from the calendar bridge service, which owns
// the third-party OAuth and exposes plain JSON:
//
//	GET {base}/calendars/{id}/busy?from=RFC3339&to=RFC3339
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPSource) BusyEvents(ctx context.Context, calendarID string, windowStart, windowEnd time.Time) ([]Event, error) {
	u := fmt.Sprintf("%s/calendars/%s/busy?from=%s&to=%s",
		s.baseURL,
		url.PathEscape(calendarID),
		url.QueryEscape(windowStart.UTC().Format(time.RFC3339)),
		url.QueryEscape(windowEnd.UTC().Format(time.RFC3339)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar bridge: unexpected status %d", resp.StatusCode)
	}

	var events []Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, err
	}
	return events, nil
}
