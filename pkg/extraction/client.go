// Package extraction talks to the external OCR service that turns scanned
// reports into text.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pulsewise/platform/pkg/common/logger"
	"github.com/pulsewise/platform/pkg/gateway/httpclient"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultLanguage = "eng"

	exitPartial = 2

	maxResponseBytes = 16 << 20
)

var ErrServiceError = errors.New("ocr service error")

// Request is a single document submitted for OCR.
type Request struct {
	Document  []byte
	FileName  string
	Language  string
	TableMode bool
}

// Result is the extracted text. Partial is set when the service stopped early
// (for example at its page limit) and Text holds what it managed to read.
type Result struct {
	Text    string
	Pages   int
	Partial bool
}

// Error wraps a failed extraction. Text carries any pages that were read
// before the failure.
type Error struct {
	Partial bool
	Text    string
	Err     error
}

func (e *Error) Error() string {
	if e.Partial {
		return fmt.Sprintf("partial extraction: %v", e.Err)
	}
	return fmt.Sprintf("extraction failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options configure the OCR client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// Optional OAuth2 client credentials. When TokenURL is empty the API key
	// header is the only credential sent.
	TokenURL     string
	ClientID     string
	ClientSecret string
}

type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	base := httpclient.New(opts.Timeout)

	client := base
	if opts.TokenURL != "" && opts.ClientID != "" {
		cc := &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		client = cc.Client(ctx)
		client.Timeout = opts.Timeout
	}

	return &Client{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		timeout: opts.Timeout,
		http:    client,
	}
}

type ocrResponse struct {
	ParsedResults []struct {
		ParsedText        string `json:"ParsedText"`
		FileParseExitCode int    `json:"FileParseExitCode"`
		ErrorMessage      string `json:"ErrorMessage"`
	} `json:"ParsedResults"`
	OCRExitCode           int             `json:"OCRExitCode"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

// Extract submits the document and returns its text with pages joined by
// newlines in page order. The call is bounded by the client timeout and is
// never retried here.
func (c *Client) Extract(ctx context.Context, req Request) (Result, error) {
	if req.Language == "" {
		req.Language = DefaultLanguage
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, contentType, err := encodeRequest(req)
	if err != nil {
		return Result{}, &Error{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, body)
	if err != nil {
		return Result{}, &Error{Err: err}
	}
	httpReq.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		httpReq.Header.Set("apikey", c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if httpclient.IsTimeout(err) {
			return Result{}, &Error{Err: fmt.Errorf("ocr request timed out after %s: %w", c.timeout, err)}
		}
		return Result{}, &Error{Err: fmt.Errorf("ocr request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, &Error{Err: fmt.Errorf("%w: status %d: %s", ErrServiceError, resp.StatusCode, strings.TrimSpace(string(snippet)))}
	}

	var decoded ocrResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return Result{}, &Error{Err: fmt.Errorf("decoding ocr response: %w", err)}
	}

	result := Result{Pages: len(decoded.ParsedResults)}
	pages := make([]string, 0, len(decoded.ParsedResults))
	for _, page := range decoded.ParsedResults {
		pages = append(pages, strings.TrimRight(page.ParsedText, "\r\n"))
	}
	result.Text = strings.Join(pages, "\n")

	messages := errorMessages(decoded.ErrorMessage)
	for _, page := range decoded.ParsedResults {
		if page.ErrorMessage != "" {
			messages = append(messages, page.ErrorMessage)
		}
	}

	logger.WithFields(logrus.Fields{
		"file":        req.FileName,
		"pages":       result.Pages,
		"exit_code":   decoded.OCRExitCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("ocr extraction finished")

	if decoded.IsErroredOnProcessing || decoded.OCRExitCode > exitPartial {
		cause := fmt.Errorf("%w: %s", ErrServiceError, strings.Join(messages, "; "))
		if isPageLimit(messages) && strings.TrimSpace(result.Text) != "" {
			result.Partial = true
			logger.WithField("file", req.FileName).Warn("ocr page limit reached, continuing with partial text")
			return result, nil
		}
		return Result{}, &Error{Partial: strings.TrimSpace(result.Text) != "", Text: result.Text, Err: cause}
	}
	result.Partial = decoded.OCRExitCode == exitPartial
	return result, nil
}

func encodeRequest(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"language", req.Language},
		{"isTable", fmt.Sprintf("%t", req.TableMode)},
		{"OCREngine", "2"},
		{"scale", "true"},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	part, err := w.CreateFormFile("file", req.FileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Document); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// errorMessages accepts the service's ErrorMessage as either a string or a
// list of strings.
func errorMessages(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}

func isPageLimit(messages []string) bool {
	for _, msg := range messages {
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "page") && (strings.Contains(lower, "limit") || strings.Contains(lower, "maximum")) {
			return true
		}
	}
	return false
}
