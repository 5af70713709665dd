// Package api is the client for the node's pull endpoint, GET <base>/files.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/kinofiles/kinosync/internal/config"
	"github.com/kinofiles/kinosync/internal/http"
	"github.com/kinofiles/kinosync/internal/logging"
	"github.com/kinofiles/kinosync/internal/models"
)

// maxSnapshotBytes bounds a listing body (64 MiB).
const maxSnapshotBytes = 64 << 20

// retryLogger implements the retryablehttp.LeveledLogger interface on top of
// the zerolog wrapper.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Per-request info lines are too chatty at info level
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Client fetches file listings from a node.
type Client struct {
	httpClient *nethttp.Client
	baseURL    string
	logger     *logging.Logger
}

// listFilesResponse is the body of GET /files. A pointer distinguishes a
// missing or null ListFiles from an empty one.
type listFilesResponse struct {
	ListFiles *[]models.FileEntry `json:"ListFiles"`
}

// NewClient creates a snapshot client for cfg.BaseURL. Failed requests are
// retried cfg.SnapshotRetries times; the default of zero means one attempt.
func NewClient(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("node base URL is empty: %w", config.ErrMissingBaseURL)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	httpClient, err := http.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = cfg.SnapshotRetries
	retryClient.RetryWaitMin = 250 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = &retryLogger{logger: logger}
	// Hand the final response back instead of retryablehttp's generic
	// "giving up" error so the status can be reported.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		httpClient: retryClient.StandardClient(),
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:     logger,
	}, nil
}

// BaseURL returns the node URL this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListFiles fetches the node's full listing. Any failure, including a body
// without a ListFiles field, is returned as a *RefreshFetchError.
func (c *Client) ListFiles(ctx context.Context) ([]models.FileEntry, error) {
	url := c.baseURL + "/files"

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, url, nil)
	if err != nil {
		return nil, &RefreshFetchError{Stage: StageRequest, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &RefreshFetchError{Stage: StageRequest, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &RefreshFetchError{
			Stage:      StageStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body))),
		}
	}

	var parsed listFilesResponse
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err := dec.Decode(&parsed); err != nil {
		return nil, &RefreshFetchError{Stage: StageDecode, Err: err}
	}
	if parsed.ListFiles == nil {
		return nil, &RefreshFetchError{Stage: StageDecode, Err: ErrMissingListFiles}
	}

	files := *parsed.ListFiles
	c.logger.Debug().Int("files", len(files)).Msg("Fetched listing")
	return files, nil
}

// ErrMissingListFiles is wrapped when the body has no usable ListFiles field.
var ErrMissingListFiles = errors.New("response has no ListFiles field")
