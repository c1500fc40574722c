package timetable

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher retrieves the raw timetable page for an identifier. The production
// implementation talks to the university site; tests substitute a stub.
type Fetcher interface {
	Fetch(ctx context.Context, id TimetableID) ([]byte, error)
}

// RetrievalError wraps a transport or HTTP failure while fetching the
// timetable page. It is kept distinct from parse errors so callers can tell
// "the university site is unreachable" from "the timetable format changed".
type RetrievalError struct {
	URL    string
	Status int
	Err    error
}

func (e *RetrievalError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("retrieve %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("retrieve %s: %v", e.URL, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// HTTPFetcher fetches timetable pages over HTTP with a bounded timeout.
// Cancelling the request context aborts the fetch.
type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, id TimetableID) ([]byte, error) {
	u := id.URL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &RetrievalError{URL: u, Err: err}
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &RetrievalError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RetrievalError{URL: u, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RetrievalError{URL: u, Err: err}
	}
	return body, nil
}
