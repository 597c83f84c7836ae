package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"nutrilens/api/internal/analyzer/types"
)

// Client talks to the backend's /analyze endpoint.
type Client struct {
	baseURL string
	httpc   *http.Client
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpc = h } }

// New accepts either the service root or the full .../analyze URL.
func New(baseURL string, opts ...Option) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	base = strings.TrimSuffix(base, "/analyze")
	c := &Client{
		baseURL: base,
		httpc:   &http.Client{Timeout: 180 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// StatusError: the backend answered with a non-2xx status.
type StatusError struct {
	Code   int
	Body   string
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("Error %d: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("Error %d: %s", e.Code, strings.TrimSpace(e.Body))
}

// TransportError: the request never got an HTTP answer.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "connection error: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// Analyze uploads img as the multipart field "file" with the given type.
func (c *Client) Analyze(ctx context.Context, img []byte, filename, mime string) (types.AnalysisResult, error) {
	body, contentType, err := buildMultipart(img, filename, mime)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", body)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	var out types.AnalysisResult
	if err := c.do(req, &out); err != nil {
		return types.AnalysisResult{}, err
	}
	if out.Foods == nil {
		out.Foods = []types.FoodItem{}
	}
	return out, nil
}

type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return Health{}, err
	}
	var h Health
	err = c.do(req, &h)
	return h, err
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Code: resp.StatusCode, Body: string(data)}
		var er types.ErrorResult
		if json.Unmarshal(data, &er) == nil {
			se.Detail = er.Detail
		}
		return se
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func buildMultipart(img []byte, filename, mime string) (*bytes.Buffer, string, error) {
	if filename == "" {
		filename = "upload"
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", mime)
	pw, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := pw.Write(img); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// Describe renders any Analyze error as a one-line message for a UI.
func Describe(err error) string {
	var te *TransportError
	if errors.As(err, &te) {
		return "Connection Error. Is the backend running? " + te.Err.Error()
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Error()
	}
	return err.Error()
}
