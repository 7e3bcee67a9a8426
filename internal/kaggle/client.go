// Package kaggle downloads datasets from the Kaggle public API.
//
// Only the dataset download endpoint is implemented:
//
//	GET /api/v1/datasets/download/{owner}/{dataset}
//
// The API answers with a redirect to a signed storage URL; the standard
// HTTP client follows it and the body is the zipped dataset.
package kaggle

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultBaseURL is the public Kaggle endpoint.
const DefaultBaseURL = "https://www.kaggle.com"

// Slug identifies a dataset as owner/name.
type Slug struct {
	Owner string
	Name  string
}

func (s Slug) String() string {
	return s.Owner + "/" + s.Name
}

// ParseSlug splits "owner/name".
func ParseSlug(raw string) (Slug, error) {
	parts := strings.Split(strings.TrimSpace(raw), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Slug{}, fmt.Errorf("%w: %q (want owner/name)", ErrInvalidSlug, raw)
	}
	return Slug{Owner: parts[0], Name: parts[1]}, nil
}

// Config holds client configuration.
type Config struct {
	// BaseURL of the API (default: DefaultBaseURL)
	BaseURL string

	// HTTPClient used for requests (default: 30 minute timeout)
	HTTPClient *http.Client

	// Logger for download activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Minute},
		Logger:     log.New(io.Discard, "", 0),
	}
}

// Client talks to the Kaggle API.
type Client struct {
	creds  Credentials
	config *Config
}

// NewClient creates a client. A nil config uses DefaultConfig().
func NewClient(creds Credentials, config *Config) (*Client, error) {
	if !creds.Valid() {
		return nil, ErrNoCredentials
	}
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = defaults.HTTPClient
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Client{creds: creds, config: config}, nil
}

// DownloadDataset streams the dataset archive into destDir/<name>.zip and
// returns the archive path and its size in bytes.
//
// The body is written to a .part file first and renamed on success, so an
// interrupted download never leaves a truncated archive under the final name.
func (c *Client) DownloadDataset(ctx context.Context, slug Slug, destDir string) (string, int64, error) {
	url := fmt.Sprintf("%s/api/v1/datasets/download/%s/%s", c.config.BaseURL, slug.Owner, slug.Name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.creds.Username, c.creds.Key)
	req.Header.Set("User-Agent", "yoloprep")

	c.config.Logger.Printf("downloading %s", slug)
	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("failed to download %s: %w", slug, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", 0, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create download directory: %w", err)
	}

	final := filepath.Join(destDir, slug.Name+".zip")
	part := final + ".part"

	// #nosec G304 - controlled path
	f, err := os.Create(part)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create %s: %w", part, err)
	}

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(part)
		return "", 0, fmt.Errorf("failed to write archive: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(part)
		return "", 0, fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Rename(part, final); err != nil {
		return "", 0, fmt.Errorf("failed to finalize archive: %w", err)
	}

	c.config.Logger.Printf("downloaded %s (%d bytes)", final, n)
	return final, n, nil
}
