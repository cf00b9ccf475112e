package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// URLSource ages a remote resource by its Last-Modified header, falling back
// to Date when the server sends none.
type URLSource struct {
	Client *http.Client
}

// Age implements AgeSource. Transport failures and non-2xx answers are
// returned as errors.
func (s URLSource) Age(ctx context.Context, t Target) (Stamp, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Locator, nil)
	if err != nil {
		return Stamp{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Stamp{}, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Stamp{}, fmt.Errorf("%s: %s", t.Locator, resp.Status)
	}

	header := resp.Header.Get("Last-Modified")
	if header == "" {
		header = resp.Header.Get("Date")
	}
	if header == "" {
		return Stamp{}, fmt.Errorf("%s: no Last-Modified or Date header", t.Locator)
	}
	asOf, err := http.ParseTime(header)
	if err != nil {
		return Stamp{}, fmt.Errorf("%s: parse time header %q: %w", t.Locator, header, err)
	}
	return Stamp{Exists: true, AsOf: asOf.Local()}, nil
}
