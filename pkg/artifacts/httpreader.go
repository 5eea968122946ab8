package artifacts

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"k8s.io/klog/v2"
)

// HTTPReader fetches artifacts from a domain artifact server (cmd/domainserver).
type HTTPReader struct {
	// BaseURL is the base URL of the artifact server, typically
	// http://domainserver
	BaseURL *url.URL
}

var _ Reader = (*HTTPReader)(nil)

func (h *HTTPReader) Download(ctx context.Context, key string, destPath string) error {
	u := h.BaseURL.JoinPath(key)
	if err := h.downloadToFile(ctx, u.String(), destPath); err != nil {
		return fmt.Errorf("downloading artifact %q: %w", key, err)
	}
	return nil
}

func (h *HTTPReader) downloadToFile(ctx context.Context, url string, destPath string) error {
	log := klog.FromContext(ctx)

	log.Info("downloading from url", "url", url)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	startedAt := time.Now()

	httpClient := &http.Client{}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("artifact not found: %w", os.ErrNotExist)
		}
		return fmt.Errorf("unexpected status downloading from artifact server: %v", resp.Status)
	}

	n, err := writeToFile(ctx, resp.Body, destPath)
	if err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}

	log.Info("downloaded artifact", "url", url, "bytes", n, "duration", time.Since(startedAt))

	return nil
}
