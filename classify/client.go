// Package classify is the client for the external image classification service.
//
// One request carries a whole batch as multipart/form-data. The service answers
// with one JSON object per image: either a prediction or an error. Any
// transport-level problem fails the whole batch with a TransportError; the
// client never partially fails a batch itself.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"strings"
	"time"

	"github.com/pithecene-io/triage/iox"
	"github.com/pithecene-io/triage/types"
)

// DefaultTimeout is the per-request timeout.
const DefaultTimeout = 120 * time.Second

// DefaultFieldName is the multipart field carrying the images.
const DefaultFieldName = "image_files"

// maxErrorBody bounds how much of a non-2xx body is kept in StatusError.
const maxErrorBody = 512

// Image is one named payload in a classification request.
type Image struct {
	Filename string
	Data     []byte
}

// Classifier classifies a batch of images.
type Classifier interface {
	// Classify sends all images in one request. It returns one result per
	// filename the service answered for, or a *TransportError.
	Classify(ctx context.Context, images []Image) ([]types.PredictionResult, error)
}

// Config configures the client.
type Config struct {
	// URL is the prediction endpoint, e.g. http://host:5000/predict (required).
	URL string
	// HealthURL is the health endpoint. Defaults to URL with its last path
	// element replaced by "health".
	HealthURL string
	// Timeout is the per-request timeout (default 120s).
	Timeout time.Duration
	// FieldName is the multipart field name (default image_files).
	FieldName string
	// Labels, when set, rejects predictions whose class is not in the set.
	Labels types.LabelSet
	// Headers are added to every request.
	Headers map[string]string
}

// Client talks to the classification service over HTTP.
type Client struct {
	config Config
	http   *http.Client
}

// New creates a client. Returns an error if the URL is empty.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("classifier requires a URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.FieldName == "" {
		cfg.FieldName = DefaultFieldName
	}
	if cfg.HealthURL == "" {
		cfg.HealthURL = deriveHealthURL(cfg.URL)
	}
	if len(cfg.Labels) > 0 {
		if err := cfg.Labels.Validate(); err != nil {
			return nil, fmt.Errorf("classifier labels: %w", err)
		}
	}
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func deriveHealthURL(predictURL string) string {
	i := strings.LastIndex(predictURL, "/")
	if i < len("https://") {
		return strings.TrimSuffix(predictURL, "/") + "/health"
	}
	return predictURL[:i] + "/health"
}

// TransportError is a batch-level failure: connection error, timeout,
// non-2xx status or an undecodable response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "classification request failed: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError is returned (wrapped in TransportError) for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// IsTransportError reports whether err is a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Classify implements Classifier.
func (c *Client) Classify(ctx context.Context, images []Image) ([]types.PredictionResult, error) {
	if len(images) == 0 {
		return nil, nil
	}

	body, contentType, err := c.encode(images)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{Err: &StatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(snippet)),
		}}
	}

	var raw []wireResult
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return c.convert(raw), nil
}

func (c *Client) encode(images []Image) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, img := range images {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`,
			c.config.FieldName, img.Filename))
		h.Set("Content-Type", contentTypeFor(img.Filename))
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func contentTypeFor(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// wireResult is one element of the service's JSON response.
type wireResult struct {
	Filename      string             `json:"filename"`
	Class         *string            `json:"predicted_class"`
	ClassIndex    *int               `json:"predicted_class_index"`
	Probabilities map[string]float64 `json:"probabilities"`
	Error         *string            `json:"error"`
}

// convert maps wire results onto the tagged union. Entries without a
// filename cannot be matched to an item and are dropped.
func (c *Client) convert(raw []wireResult) []types.PredictionResult {
	out := make([]types.PredictionResult, 0, len(raw))
	for _, r := range raw {
		if r.Filename == "" {
			continue
		}
		if r.Error != nil {
			out = append(out, types.Failed(r.Filename, *r.Error))
			continue
		}
		if r.Class == nil {
			out = append(out, types.Failed(r.Filename, "service returned neither prediction nor error"))
			continue
		}
		if len(c.config.Labels) > 0 && !c.config.Labels.Contains(*r.Class) {
			out = append(out, types.Failed(r.Filename, fmt.Sprintf("unknown class label %q", *r.Class)))
			continue
		}
		p := types.Prediction{
			Class:         *r.Class,
			Probabilities: r.Probabilities,
		}
		if r.ClassIndex != nil {
			p.ClassIndex = *r.ClassIndex
		} else if len(c.config.Labels) > 0 {
			p.ClassIndex = c.config.Labels.Index(*r.Class)
		}
		out = append(out, types.OK(r.Filename, p))
	}
	return out
}

// Verify Client implements Classifier.
var _ Classifier = (*Client)(nil)
