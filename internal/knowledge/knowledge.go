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

// Package knowledge 规则知识库：文档切片入库与相似度检索
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	einoembed "github.com/cloudwego/eino/components/embedding"
	einoindexer "github.com/cloudwego/eino/components/indexer"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"deck-agent/internal/storage/vector"
	"deck-agent/pkg/errors"
)

// 检索默认值
const (
	DefaultLimit     = 5
	DefaultThreshold = 0.25
)

// Entry 一条检索结果
type Entry struct {
	Source string  `json:"source"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
}

// Option Base 配置项
type Option func(*Base)

// WithThreshold 设置相似度阈值
func WithThreshold(t float64) Option {
	return func(b *Base) { b.threshold = t }
}

// WithChunking 设置切片大小与重叠
func WithChunking(size, overlap int) Option {
	return func(b *Base) { b.splitter = NewSplitter(size, overlap) }
}

// WithStore 重建索引前按来源清理旧 chunk
func WithStore(store vector.Store, index string) Option {
	return func(b *Base) {
		if store == nil {
			return
		}
		b.purge = func(ctx context.Context, source string) error {
			_, err := store.DeleteWhere(ctx, index, map[string]string{vector.MetaSource: source})
			if errors.Is(err, errors.ErrNotFound) {
				return nil
			}
			return err
		}
	}
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(b *Base) { b.logger = l }
}

// Base 知识库
type Base struct {
	retriever einoretriever.Retriever
	indexer   einoindexer.Indexer
	embedder  einoembed.Embedder
	splitter  *Splitter
	threshold float64
	purge     func(ctx context.Context, source string) error
	ingest    compose.Runnable[[]*schema.Document, []string]
	logger    *slog.Logger
}

// NewBase 创建知识库；indexer 为 nil 时只读
func NewBase(ctx context.Context, retriever einoretriever.Retriever, indexer einoindexer.Indexer, embedder einoembed.Embedder, opts ...Option) (*Base, error) {
	if retriever == nil || embedder == nil {
		return nil, fmt.Errorf("knowledge base 需要 retriever 与 embedder")
	}
	b := &Base{
		retriever: retriever,
		indexer:   indexer,
		embedder:  embedder,
		splitter:  NewSplitter(DefaultChunkSize, DefaultChunkOverlap),
		threshold: DefaultThreshold,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(b)
	}
	if indexer != nil {
		r, err := NewIngestChain(ctx, b.splitter, indexer)
		if err != nil {
			return nil, err
		}
		b.ingest = r
	}
	return b, nil
}

// Query 检索与问题最相关的 chunk，按得分降序
func (b *Base) Query(ctx context.Context, question string, limit int) ([]Entry, error) {
	if strings.TrimSpace(question) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	docs, err := b.retriever.Retrieve(ctx, question,
		einoretriever.WithTopK(limit),
		einoretriever.WithScoreThreshold(b.threshold),
		einoretriever.WithEmbedding(b.embedder),
	)
	if err != nil {
		return nil, fmt.Errorf("knowledge query: %w", err)
	}
	entries := make([]Entry, 0, len(docs))
	for _, d := range docs {
		if d == nil || d.Score() < b.threshold {
			continue
		}
		source, _ := d.MetaData[vector.MetaSource].(string)
		entries = append(entries, Entry{Source: source, Text: d.Content, Score: d.Score()})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// IndexText 将一篇文档切片入库，返回 chunk 数
func (b *Base) IndexText(ctx context.Context, source, text string) (int, error) {
	if b.ingest == nil {
		return 0, fmt.Errorf("knowledge base is read-only")
	}
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}
	if b.purge != nil {
		if err := b.purge(ctx, source); err != nil {
			return 0, fmt.Errorf("purge %s: %w", source, err)
		}
	}
	doc := &schema.Document{ID: source, Content: text, MetaData: map[string]any{vector.MetaSource: source}}
	ids, err := b.ingest.Invoke(ctx, []*schema.Document{doc},
		compose.WithIndexerOption(einoindexer.WithEmbedding(b.embedder)))
	if err != nil {
		return 0, fmt.Errorf("index %s: %w", source, err)
	}
	return len(ids), nil
}

// IndexDir 按文件名顺序索引目录下的 .md / .pdf 文档，返回 chunk 总数
func (b *Base) IndexDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read knowledge dir: %w", err)
	}
	total := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		text, ok, err := loadDocument(filepath.Join(dir, name))
		if err != nil {
			return total, err
		}
		if !ok {
			continue
		}
		n, err := b.IndexText(ctx, name, text)
		if err != nil {
			return total, err
		}
		b.logger.Info("知识文档已索引", "source", name, "chunks", n)
		total += n
	}
	return total, nil
}

func loadDocument(path string) (string, bool, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".md" && ext != ".pdf" {
		return "", false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, err
	}
	if ext == ".pdf" {
		text, err := ExtractPDFText(data)
		if err != nil {
			return "", false, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		return text, true, nil
	}
	return string(data), true, nil
}
