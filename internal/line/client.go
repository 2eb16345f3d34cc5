// Package line 是 LINE Messaging API 的最小客户端，只包含本服务用到的接口
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func NewClient(baseURL, accessToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type Profile struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl"`
	StatusMessage string `json:"statusMessage"`
}

// APIError 是 LINE 平台返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line api: status %d: %s", e.StatusCode, e.Message)
}

func (c *Client) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	profile := &Profile{}
	if err := c.do(ctx, http.MethodGet, "/v2/bot/profile/"+url.PathEscape(userID), nil, profile); err != nil {
		return nil, err
	}

	return profile, nil
}

func (c *Client) PushMessage(ctx context.Context, to string, messages ...Message) error {
	body := struct {
		To       string    `json:"to"`
		Messages []Message `json:"messages"`
	}{
		To:       to,
		Messages: messages,
	}

	return c.do(ctx, http.MethodPost, "/v2/bot/message/push", body, nil)
}

func (c *Client) ReplyMessage(ctx context.Context, replyToken string, messages ...Message) error {
	body := struct {
		ReplyToken string    `json:"replyToken"`
		Messages   []Message `json:"messages"`
	}{
		ReplyToken: replyToken,
		Messages:   messages,
	}

	return c.do(ctx, http.MethodPost, "/v2/bot/message/reply", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		// 响应体不是 JSON 时只保留状态码
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
