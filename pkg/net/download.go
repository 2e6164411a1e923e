package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

var ErrorURLNotFound = errors.New("URL not found")

// IsURL reports whether the source should be fetched over HTTP rather than opened from disk.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func getResp(ctx context.Context, url string) (*http.Response, error) {
	c, err := GetHTTPClient()
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP client: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP Get request: %w", err)
	}

	req.Header.Set("User-Agent", clientAgent)

	return c.Do(req) //nolint:gosec // G107: URL is an explicit import source
}

// Open returns the body of a successful GET. Callers close it.
func Open(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := getResp(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("error fetching %s: %w", url, err)
	}
	PrintHTTPResponse(resp)

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrorURLNotFound
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("error downloading file (status: %d - %s): %s", resp.StatusCode, resp.Status, url)
	}

	return resp.Body, nil
}

// Download saves the content of url into filepath.
func Download(ctx context.Context, url string, filepath string) (retErr error) {
	body, err := Open(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	out, err := os.Create(filepath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("closing file: %w", cerr)
		}
	}()

	if _, err := io.Copy(out, body); err != nil {
		return fmt.Errorf("error saving downloaded content to file: %w", err)
	}

	return nil
}
