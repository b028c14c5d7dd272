package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnreachable is returned when the start URL fails the preflight check.
var ErrUnreachable = errors.New("start url is not reachable")

// DefaultPreflightTimeout bounds one preflight request.
const DefaultPreflightTimeout = 10 * time.Second

// Preflight checks that a start URL answers before a browser is launched.
type Preflight struct {
	client *http.Client
}

// NewPreflight creates a checker. A nil client uses one with
// DefaultPreflightTimeout.
func NewPreflight(client *http.Client) *Preflight {
	if client == nil {
		client = &http.Client{Timeout: DefaultPreflightTimeout}
	}
	return &Preflight{client: client}
}

// Check sends HEAD, falling back to GET when HEAD fails or is refused.
// Any 2xx or 3xx response passes.
func (p *Preflight) Check(ctx context.Context, url string) error {
	status, err := p.do(ctx, http.MethodHead, url)
	if err == nil && reachable(status) {
		return nil
	}

	status, err = p.do(ctx, http.MethodGet, url)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnreachable, url, err)
	}
	if !reachable(status) {
		return fmt.Errorf("%w: %s returned HTTP %d", ErrUnreachable, url, status)
	}
	return nil
}

func (p *Preflight) do(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func reachable(status int) bool {
	return status >= 200 && status < 400
}
