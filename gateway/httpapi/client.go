package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/tbxark/stepform/gateway"
	"github.com/tbxark/stepform/types"
	"github.com/tbxark/stepform/wizard"
)

var _ wizard.Gateway = (*Client)(nil)

// Client is a wizard.Gateway talking to a Handler (or a compatible server).
type Client struct {
	baseURL string
	http    *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) FetchDraft(ctx context.Context) (*types.Draft, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/draft", nil, "")
	if err != nil {
		return nil, err
	}
	var d types.Draft
	if err := c.do(req, &d); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, types.ErrDraftNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (c *Client) SaveStep(ctx context.Context, save *types.SaveStepRequest) (*types.SaveStepResult, error) {
	var (
		body        bytes.Buffer
		contentType string
	)
	if len(save.Uploads) == 0 {
		payload, err := sonic.Marshal(fieldsBody{Fields: save.Fields})
		if err != nil {
			return nil, fmt.Errorf("marshal step %d: %w", save.Step, err)
		}
		body.Write(payload)
		contentType = "application/json"
	} else {
		ct, err := encodeMultipart(&body, save.Fields, save.Uploads)
		if err != nil {
			return nil, fmt.Errorf("encode step %d: %w", save.Step, err)
		}
		contentType = ct
	}
	req, err := c.newRequest(ctx, http.MethodPut, "/steps/"+strconv.Itoa(save.Step), &body, contentType)
	if err != nil {
		return nil, err
	}
	var res types.SaveStepResult
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Finalize(ctx context.Context, fields map[string]any) error {
	payload, err := sonic.Marshal(fieldsBody{Fields: fields})
	if err != nil {
		return fmt.Errorf("marshal final fields: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/finalize", bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if key, ok := gateway.DraftKeyFromContext(ctx); ok && key != "" {
		req.Header.Set(HeaderDraftKey, key)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = sonic.Unmarshal(data, &eb)
		return &StatusError{Code: resp.StatusCode, Message: eb.Error}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
