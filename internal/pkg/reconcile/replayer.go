package reconcile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPReplayer posts callbacks to this service's own webhook endpoints so a
// replay goes through exactly the same checks as a live delivery.
type HTTPReplayer struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewHTTPReplayer(baseURL string, httpClient *http.Client) *HTTPReplayer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPReplayer{BaseURL: strings.TrimRight(baseURL, "/"), HTTPClient: httpClient}
}

func (r *HTTPReplayer) Replay(ctx context.Context, path string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook answered %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
