// Package transcribe uploads approved audio artifacts to an OpenAI-compatible
// speech-to-text endpoint with bounded retries, cache-defeating request
// uniqueness, and conditional payload compression.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = time.Second

	// Artifacts at or under this size are uploaded byte-for-byte; typical
	// short voice clips at 16kHz never come close, so the common path skips
	// compression entirely.
	defaultSizeCeiling = 25 << 20

	connectTimeout = 5 * time.Second
	requestTimeout = 60 * time.Second
)

// Config holds the caller-supplied credentials and model selection.
type Config struct {
	APIBase  string
	APIKey   string
	KeyAlias string
	Model    string
}

// Client talks to one transcription endpoint. The underlying HTTP session is
// kept alive across calls so repeat transcriptions skip connection setup.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger

	maxAttempts uint
	retryDelay  time.Duration
	sizeCeiling int64
}

// New constructs a client; nil logger disables request logging.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: connectTimeout,
	}
	return &Client{
		cfg:         cfg,
		http:        &http.Client{Transport: transport, Timeout: requestTimeout},
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		sizeCeiling: defaultSizeCeiling,
	}
}

// ValidateConfig reports whether all four required fields are set.
func (c *Client) ValidateConfig() bool {
	return len(c.ConfigErrors()) == 0
}

// ConfigErrors lists the missing required configuration fields.
func (c *Client) ConfigErrors() []string {
	var errs []string
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		errs = append(errs, "api_key is not configured")
	}
	if strings.TrimSpace(c.cfg.APIBase) == "" {
		errs = append(errs, "api_base is not configured")
	}
	if strings.TrimSpace(c.cfg.KeyAlias) == "" {
		errs = append(errs, "key_alias is not configured")
	}
	if strings.TrimSpace(c.cfg.Model) == "" {
		errs = append(errs, "model is not configured")
	}
	return errs
}

// Transcribe uploads the artifact and returns recognized text. Attempts are
// strictly sequential with a fixed delay between them; HTTP 401 aborts
// immediately, everything else transient consumes one attempt. Cancelling
// ctx aborts the in-flight request and suppresses further attempts.
func (c *Client) Transcribe(ctx context.Context, path string) (string, error) {
	payload, err := c.loadPayload(path)
	if err != nil {
		return "", err
	}

	attempt := 0
	operation := func() (string, error) {
		attempt++
		text, err := c.attempt(ctx, payload, attempt)
		if err != nil {
			c.logger.Warn("transcription attempt failed", "attempt", attempt, "error", err.Error())
		}
		return text, err
	}

	text, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.retryDelay)),
		backoff.WithMaxTries(c.maxAttempts),
	)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return "", err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("transcription cancelled: %w", ctxErr)
		}
		return "", fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
	}

	c.logger.Info("transcription succeeded", "attempts", attempt, "text_length", len(text))
	return text, nil
}

// attempt performs one upload with a fresh request identifier so that
// intermediary caches can never replay a stale transcript.
func (c *Client) attempt(ctx context.Context, payload []byte, attempt int) (string, error) {
	requestID := uuid.NewString()[:8]
	timestamp := time.Now().UnixMilli()
	filename := fmt.Sprintf("audio_%d_%s.wav", timestamp, requestID)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", "audio/wav")
	part, err := form.CreatePart(header)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("build multipart: %w", err))
	}
	if _, err := part.Write(payload); err != nil {
		return "", backoff.Permanent(fmt.Errorf("write audio field: %w", err))
	}
	_ = form.WriteField("model", c.cfg.Model)
	_ = form.WriteField("response_format", "json")
	_ = form.WriteField("timestamp", strconv.FormatInt(timestamp, 10))
	if err := form.Close(); err != nil {
		return "", backoff.Permanent(fmt.Errorf("finalize multipart: %w", err))
	}

	url := strings.TrimRight(c.cfg.APIBase, "/") + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-Key-Alias", c.cfg.KeyAlias)
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Cache-Control", "no-cache")

	c.logger.Debug("transcription request",
		"request_id", requestID,
		"attempt", attempt,
		"payload_bytes", len(payload),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var parsed struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		return strings.TrimSpace(parsed.Text), nil
	case resp.StatusCode == http.StatusUnauthorized:
		return "", backoff.Permanent(ErrInvalidCredentials)
	case resp.StatusCode == http.StatusServiceUnavailable:
		return "", ErrServiceUnavailable
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
}

// loadPayload reads the artifact, compressing it only past the size ceiling.
func (c *Client) loadPayload(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}

	if info.Size() > c.sizeCeiling {
		compressed, err := compressArtifact(path)
		if err != nil {
			return nil, fmt.Errorf("compress oversized artifact: %w", err)
		}
		c.logger.Info("artifact compressed for upload",
			"original_bytes", info.Size(),
			"compressed_bytes", len(compressed),
		)
		return compressed, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}
	return data, nil
}

// Warmup issues one lightweight metadata request to pre-establish the HTTP
// session before the first real transcription. Best effort only.
func (c *Client) Warmup(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.cfg.APIBase, "/")+"/v1/models", nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-Key-Alias", c.cfg.KeyAlias)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("warmup request failed", "error", err.Error())
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
	c.logger.Debug("warmup complete", "status", resp.StatusCode)
}

// TestConnection verifies credentials against the models endpoint. A 404 is
// treated as success: auth worked, the endpoint just is not exposed.
func (c *Client) TestConnection(ctx context.Context) (bool, string) {
	if errs := c.ConfigErrors(); len(errs) > 0 {
		return false, "configuration errors: " + strings.Join(errs, ", ")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.cfg.APIBase, "/")+"/v1/models", nil)
	if err != nil {
		return false, fmt.Sprintf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-Key-Alias", c.cfg.KeyAlias)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Sprintf("connection failed: %v", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, "connection successful"
	case http.StatusNotFound:
		return true, "connection successful (models endpoint not found, but authentication worked)"
	case http.StatusUnauthorized:
		return false, "invalid API key or authentication failed"
	case http.StatusForbidden:
		return false, "access denied - check API key permissions"
	default:
		return false, fmt.Sprintf("unexpected response: HTTP %d", resp.StatusCode)
	}
}
