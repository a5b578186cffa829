// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"deck-agent/internal/storage/conversation"
)

// apiClient 卡组助手 HTTP API 客户端
type apiClient struct {
	rest *resty.Client
	// stream 不设超时，回合可能持续数分钟
	stream *resty.Client
}

func newClient(baseURL string) *apiClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &apiClient{
		rest: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second).
			SetHeader("Content-Type", "application/json"),
		stream: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "text/event-stream"),
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func apiError(resp *resty.Response, e *errorBody) error {
	msg := e.Error
	if msg == "" {
		msg = strings.TrimSpace(resp.String())
	}
	return fmt.Errorf("%s %s: %d %s", resp.Request.Method, resp.Request.URL, resp.StatusCode(), msg)
}

// healthBody /health 响应；timestamp 为 unix 秒
type healthBody struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp int64  `json:"timestamp"`
}

func (c *apiClient) health(ctx context.Context) (string, error) {
	var out healthBody
	var e errorBody
	resp, err := c.rest.R().SetContext(ctx).SetResult(&out).SetError(&e).Get("/health")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", apiError(resp, &e)
	}
	return out.Status, nil
}

type createConversationBody struct {
	Title    string         `json:"title,omitempty"`
	Context  map[string]any `json:"context,omitempty"`
	Provider string         `json:"provider,omitempty"`
	Model    string         `json:"model,omitempty"`
}

func (c *apiClient) createConversation(ctx context.Context, body createConversationBody) (*conversation.Conversation, error) {
	var out conversation.Conversation
	var e errorBody
	resp, err := c.rest.R().SetContext(ctx).SetBody(body).SetResult(&out).SetError(&e).
		Post("/api/v1/conversations")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apiError(resp, &e)
	}
	return &out, nil
}

func (c *apiClient) listConversations(ctx context.Context, limit, offset int) ([]*conversation.Conversation, error) {
	var out []*conversation.Conversation
	var e errorBody
	resp, err := c.rest.R().SetContext(ctx).
		SetQueryParam("limit", fmt.Sprint(limit)).
		SetQueryParam("offset", fmt.Sprint(offset)).
		SetResult(&out).SetError(&e).
		Get("/api/v1/conversations")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apiError(resp, &e)
	}
	return out, nil
}

type conversationDetail struct {
	conversation.Conversation
	Messages []*conversation.Message `json:"messages"`
}

func (c *apiClient) getConversation(ctx context.Context, id string) (*conversationDetail, error) {
	var out conversationDetail
	var e errorBody
	resp, err := c.rest.R().SetContext(ctx).SetPathParam("id", id).SetResult(&out).SetError(&e).
		Get("/api/v1/conversations/{id}")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apiError(resp, &e)
	}
	return &out, nil
}

func (c *apiClient) deleteConversation(ctx context.Context, id string) error {
	var e errorBody
	resp, err := c.rest.R().SetContext(ctx).SetPathParam("id", id).SetError(&e).
		Delete("/api/v1/conversations/{id}")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError(resp, &e)
	}
	return nil
}

type sendMessageBody struct {
	Content  string         `json:"content"`
	Provider string         `json:"provider,omitempty"`
	Model    string         `json:"model,omitempty"`
	Context  map[string]any `json:"context,omitempty"`
}

// sendMessage 发送消息并逐个回调 SSE 事件，直到流结束
func (c *apiClient) sendMessage(ctx context.Context, id string, body sendMessageBody, onEvent func(event, data string) error) error {
	resp, err := c.stream.R().SetContext(ctx).SetPathParam("id", id).SetBody(body).
		SetDoNotParseResponse(true).
		Post("/api/v1/conversations/{id}/messages")
	if err != nil {
		return err
	}
	raw := resp.RawBody()
	defer raw.Close()
	if resp.IsError() {
		var e errorBody
		if derr := decodeJSON(raw, &e); derr != nil || e.Error == "" {
			return fmt.Errorf("POST %s: %d", resp.Request.URL, resp.StatusCode())
		}
		return fmt.Errorf("POST %s: %d %s", resp.Request.URL, resp.StatusCode(), e.Error)
	}
	return readSSE(raw, onEvent)
}
