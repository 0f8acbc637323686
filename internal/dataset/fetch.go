package dataset

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// StatusError is a non-2xx reply from the dataset host.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download %s: unexpected status %d", e.URL, e.StatusCode)
}

// Retryable reports whether the host may succeed on a later attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Fetcher downloads CSV tables over HTTP, retrying transient failures with
// exponential backoff.
type Fetcher struct {
	Client      *http.Client
	MaxAttempts int
	BaseDelay   time.Duration
}

// NewFetcher returns a fetcher with a 5 minute timeout and 3 attempts.
func NewFetcher() *Fetcher {
	return &Fetcher{
		Client:      &http.Client{Timeout: 5 * time.Minute},
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
	}
}

// Fetch downloads a CSV table with the default fetcher.
func Fetch(ctx context.Context, url string) (*Frame, error) {
	return NewFetcher().Fetch(ctx, url)
}

// Fetch downloads and parses the CSV at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Frame, error) {
	attempts := f.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := f.BaseDelay
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		frame, err := f.fetchOnce(ctx, client, url)
		if err == nil {
			return frame, nil
		}
		lastErr = err
		if !retryable(err) || attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, client *http.Client, url string) (*Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	frame, err := ReadCSV(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return frame, nil
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
