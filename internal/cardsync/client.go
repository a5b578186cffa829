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

// Package cardsync 从 optcgapi 拉取卡牌与 Leader 并写入卡牌库
package cardsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"
)

// 默认值
const (
	DefaultBaseURL     = "https://optcgapi.com"
	DefaultConcurrency = 2
	DefaultTimeout     = 60 * time.Second
)

// Endpoints 全部系列卡与起始卡组卡
var Endpoints = []string{"/api/allSetCards/", "/api/allSTCards/"}

// Config Client 构造参数
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	Concurrency int
	Logger      *slog.Logger
}

// Client optcgapi 客户端
type Client struct {
	client      *resty.Client
	endpoints   []string
	concurrency int
	logger      *slog.Logger
}

// New 创建 Client
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)
	return &Client{client: client, endpoints: Endpoints, concurrency: cfg.Concurrency, logger: cfg.Logger}
}

// RawCard optcgapi 返回的单条记录；数值字段可能是字符串、数字或 null
type RawCard struct {
	CardSetID string  `json:"card_set_id"`
	CardName  string  `json:"card_name"`
	CardType  string  `json:"card_type"`
	CardColor string  `json:"card_color"`
	CardCost  FlexInt `json:"card_cost"`
	CardPower FlexInt `json:"card_power"`
	Counter   FlexInt `json:"counter_amount"`
	Life      FlexInt `json:"life"`
	Attribute string  `json:"attribute"`
	CardText  string  `json:"card_text"`
	Rarity    string  `json:"rarity"`
	SubTypes  string  `json:"sub_types"`
	SetID     string  `json:"set_id"`
	CardImage string  `json:"card_image"`
}

// FlexInt 宽松整数：无法解析时为空
type FlexInt struct {
	Value *int
}

// UnmarshalJSON 接受 3、"3"、null、"NULL"、"-"
func (f *FlexInt) UnmarshalJSON(b []byte) error {
	f.Value = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		f.Value = &n
		return nil
	}
	if fl, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		n := int(fl)
		f.Value = &n
	}
	return nil
}

// FetchAll 并发拉取全部端点。单个端点失败只记日志；全部失败时返回错误
func (c *Client) FetchAll(ctx context.Context) ([]RawCard, error) {
	var (
		mu     sync.Mutex
		all    []RawCard
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, ep := range c.endpoints {
		g.Go(func() error {
			cards, err := c.fetch(gctx, ep)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				c.logger.Error("拉取卡牌失败", "endpoint", ep, "error", err)
				return nil
			}
			c.logger.Info("拉取卡牌完成", "endpoint", ep, "count", len(cards))
			all = append(all, cards...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failed == len(c.endpoints) && failed > 0 {
		return nil, fmt.Errorf("optcgapi 全部 %d 个端点拉取失败", failed)
	}
	return all, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]RawCard, error) {
	var cards []RawCard
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&cards).
		Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("请求 %s failed: %w", endpoint, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("optcgapi 返回错误 (%d): %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return cards, nil
}
