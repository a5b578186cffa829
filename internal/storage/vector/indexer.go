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

package vector

import (
	"context"
	"fmt"

	einoindexer "github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"
)

// 元数据键
const (
	MetaContent = "content"
	MetaSource  = "source"
)

// Indexer 基于 Store 的 eino indexer.Indexer；索引不存在时按首个向量维度创建
type Indexer struct {
	store     Store
	index     string
	batchSize int
}

// IndexerConfig Indexer 构造参数
type IndexerConfig struct {
	Store     Store
	Index     string
	BatchSize int
}

// NewIndexer 创建 Indexer
func NewIndexer(cfg *IndexerConfig) (*Indexer, error) {
	if cfg == nil || cfg.Store == nil {
		return nil, fmt.Errorf("Indexer 需要 Store")
	}
	ix := &Indexer{store: cfg.Store, index: cfg.Index, batchSize: cfg.BatchSize}
	if ix.index == "" {
		ix.index = "knowledge"
	}
	if ix.batchSize <= 0 {
		ix.batchSize = 100
	}
	return ix, nil
}

// Store 实现 indexer.Indexer；缺向量的文档按批调用 Embedding
func (ix *Indexer) Store(ctx context.Context, docs []*schema.Document, opts ...einoindexer.Option) ([]string, error) {
	options := einoindexer.GetCommonOptions(&einoindexer.Options{}, opts...)
	indexName := ix.index
	if len(options.SubIndexes) > 0 && options.SubIndexes[0] != "" {
		indexName = options.SubIndexes[0]
	}

	ids := make([]string, 0, len(docs))
	for start := 0; start < len(docs); start += ix.batchSize {
		end := min(start+ix.batchSize, len(docs))
		batch := make([]*schema.Document, 0, end-start)
		for _, d := range docs[start:end] {
			if d != nil {
				batch = append(batch, d)
			}
		}
		if err := embedMissing(ctx, batch, options); err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			continue
		}

		vecs := make([]*Vector, 0, len(batch))
		for _, d := range batch {
			values := d.DenseVector()
			if len(values) == 0 {
				return nil, fmt.Errorf("doc %s has no vector and no Embedding option", d.ID)
			}
			meta := stringMeta(d.MetaData)
			meta[MetaContent] = d.Content
			vecs = append(vecs, &Vector{ID: d.ID, Values: values, Metadata: meta})
			ids = append(ids, d.ID)
		}
		if err := EnsureIndex(ctx, ix.store, indexName, len(vecs[0].Values)); err != nil {
			return nil, err
		}
		if err := ix.store.Add(ctx, indexName, vecs); err != nil {
			return nil, fmt.Errorf("vector store add: %w", err)
		}
	}
	return ids, nil
}

func embedMissing(ctx context.Context, docs []*schema.Document, options *einoindexer.Options) error {
	var pending []*schema.Document
	var texts []string
	for _, d := range docs {
		if len(d.DenseVector()) == 0 && d.Content != "" {
			pending = append(pending, d)
			texts = append(texts, d.Content)
		}
	}
	if len(pending) == 0 || options.Embedding == nil {
		return nil
	}
	vecs, err := options.Embedding.EmbedStrings(ctx, texts)
	if err != nil {
		return fmt.Errorf("indexer embedding: %w", err)
	}
	if len(vecs) != len(pending) {
		return fmt.Errorf("indexer embedding: got %d vectors for %d docs", len(vecs), len(pending))
	}
	for i, d := range pending {
		d.WithDenseVector(vecs[i])
	}
	return nil
}

func stringMeta(meta map[string]any) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		switch t := v.(type) {
		case string:
			out[k] = t
		case fmt.Stringer:
			out[k] = t.String()
		case int, int64, float64, bool:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
