package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docsync/internal/model"
	"docsync/internal/service"
)

// Client speaks the document HTTP API and reports failures with the service error kinds.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ service.DocumentService = (*Client)(nil)

// NewClient returns a Client for the API rooted at baseURL.
// Every request is bounded by timeout and traced through otelhttp.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}

// NewClientWithHTTP is like NewClient but uses hc as is.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

type writeBody struct {
	ID      string  `json:"id,omitempty"`
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

type documentEnvelope struct {
	Document *model.Document `json:"document"`
}

type deletedEnvelope struct {
	DeletedDocument *model.Document `json:"deletedDocument"`
}

type errorBody struct {
	RequestID string `json:"request_id"`
	Error     struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Create(ctx context.Context, in service.CreateInput) (*model.Document, error) {
	body := writeBody{ID: in.ID, Title: &in.Title}
	if in.Content != "" {
		body.Content = &in.Content
	}
	var out documentEnvelope
	if err := c.do(ctx, http.MethodPost, "/documents", body, &out); err != nil {
		return nil, err
	}
	return out.Document, nil
}

func (c *Client) List(ctx context.Context, opts service.ListOptions) (*service.DocumentListResult, error) {
	q := url.Values{}
	if opts.Limit != 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Token != "" {
		q.Set("token", opts.Token)
	}
	path := "/documents"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out service.DocumentListResult
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Get(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, service.ErrIDRequired
	}
	var out documentEnvelope
	if err := c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out.Document, nil
}

func (c *Client) Update(ctx context.Context, id string, in service.UpdateInput) (*model.Document, error) {
	if id == "" {
		return nil, service.ErrIDRequired
	}
	var out documentEnvelope
	body := writeBody{Title: in.Title, Content: in.Content}
	if err := c.do(ctx, http.MethodPut, "/documents/"+url.PathEscape(id), body, &out); err != nil {
		return nil, err
	}
	return out.Document, nil
}

func (c *Client) Delete(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, service.ErrIDRequired
	}
	var out deletedEnvelope
	if err := c.do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out.DeletedDocument, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", service.ErrStoreUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", service.ErrStoreUnavailable, err)
	}
	return nil
}

// decodeError maps an error response onto a service error kind.
// The error code wins over the status; an unreadable body falls back to the status family.
func decodeError(resp *http.Response) error {
	var eb errorBody
	_ = json.NewDecoder(resp.Body).Decode(&eb)

	msg := eb.Error.Message
	if msg == "" {
		msg = resp.Status
	}

	kind := service.ErrStoreUnavailable
	switch eb.Error.Code {
	case "VALIDATION_ERROR", "BAD_REQUEST":
		kind = service.ErrValidation
	case "NOT_FOUND":
		kind = service.ErrNotFound
	case "":
		switch resp.StatusCode {
		case http.StatusBadRequest:
			kind = service.ErrValidation
		case http.StatusNotFound:
			kind = service.ErrNotFound
		}
	}
	if eb.RequestID != "" {
		return fmt.Errorf("%w: %s (request %s)", kind, msg, eb.RequestID)
	}
	return fmt.Errorf("%w: %s", kind, msg)
}
