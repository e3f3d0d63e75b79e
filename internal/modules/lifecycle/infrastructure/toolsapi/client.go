// Package toolsapi is the read/submit adapter over the external automation
// platform that owns the authoritative request lifecycle.
package toolsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RequestStatus 外部平台返回的请求状态快照
type RequestStatus struct {
	RequestNumber  string `json:"requestNumber"`
	StatusCode     int8   `json:"statusCode"`
	StatusComments string `json:"statusComments"`
}

// SubmitPayload 提交新的生命周期操作
type SubmitPayload struct {
	SamAccount string `json:"samAccount"`
	Operation  string `json:"operation"`
	Comments   string `json:"comments,omitempty"`
}

type SubmitResult struct {
	RequestNumber string `json:"requestNumber"`
}

// StatusSource 请求状态的只读查询接口；上游尚不可见时返回 (nil, nil)
type StatusSource interface {
	GetStatusByRequestNumber(ctx context.Context, requestNumber string) (*RequestStatus, error)
}

// Submitter 向自动化平台提交新请求
type Submitter interface {
	SubmitRequest(ctx context.Context, payload SubmitPayload) (*SubmitResult, error)
}

type ClientOptions struct {
	BaseURL    string
	ApiKey     string
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(opts ClientOptions) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.ApiKey),
		httpClient: httpClient,
	}
}

func (c *Client) GetStatusByRequestNumber(ctx context.Context, requestNumber string) (*RequestStatus, error) {
	requestNumber = strings.TrimSpace(requestNumber)
	if requestNumber == "" {
		return nil, fmt.Errorf("tools api: request number is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/requests/%s/status", c.baseURL, requestNumber), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tools api: status query failed: %w", err)
	}
	defer resp.Body.Close()

	// 请求在上游尚不可见不算错误，由调和器下个周期再查
	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tools api: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var status RequestStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("tools api: decode status: %w", err)
	}
	if status.RequestNumber == "" {
		status.RequestNumber = requestNumber
	}
	return &status, nil
}

func (c *Client) SubmitRequest(ctx context.Context, payload SubmitPayload) (*SubmitResult, error) {
	if strings.TrimSpace(payload.SamAccount) == "" {
		return nil, fmt.Errorf("tools api: sam account is empty")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/requests", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tools api: submit failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tools api: submit rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var result SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("tools api: decode submit result: %w", err)
	}
	return &result, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}
