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

	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"deck-agent/pkg/errors"
)

// Retriever 基于 Store 的 eino retriever.Retriever
type Retriever struct {
	store     Store
	index     string
	topK      int
	threshold float64
}

// RetrieverConfig Retriever 构造参数
type RetrieverConfig struct {
	Store     Store
	Index     string
	TopK      int
	Threshold float64
}

// NewRetriever 创建 Retriever
func NewRetriever(cfg *RetrieverConfig) (*Retriever, error) {
	if cfg == nil || cfg.Store == nil {
		return nil, fmt.Errorf("Retriever requires Store")
	}
	r := &Retriever{store: cfg.Store, index: cfg.Index, topK: cfg.TopK, threshold: cfg.Threshold}
	if r.index == "" {
		r.index = "knowledge"
	}
	if r.topK <= 0 {
		r.topK = 10
	}
	return r, nil
}

// Retrieve 实现 retriever.Retriever；索引尚未创建时返回空结果
func (r *Retriever) Retrieve(ctx context.Context, query string, opts ...einoretriever.Option) ([]*schema.Document, error) {
	options := einoretriever.GetCommonOptions(&einoretriever.Options{}, opts...)
	indexName := r.index
	if options.Index != nil && *options.Index != "" {
		indexName = *options.Index
	}
	topK := r.topK
	if options.TopK != nil && *options.TopK > 0 {
		topK = *options.TopK
	}
	threshold := r.threshold
	if options.ScoreThreshold != nil {
		threshold = *options.ScoreThreshold
	}
	if options.Embedding == nil {
		return nil, fmt.Errorf("Retriever requires WithEmbedding 选项以对 query 做向量化")
	}

	vecs, err := options.Embedding.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retriever embedding: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedding returned empty")
	}

	results, err := r.store.Search(ctx, indexName, vecs[0], &SearchOptions{TopK: topK, Threshold: threshold})
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vector store search: %w", err)
	}

	docs := make([]*schema.Document, 0, len(results))
	for _, sr := range results {
		meta := make(map[string]any, len(sr.Metadata))
		for k, v := range sr.Metadata {
			if k != MetaContent {
				meta[k] = v
			}
		}
		d := &schema.Document{ID: sr.ID, Content: sr.Metadata[MetaContent], MetaData: meta}
		docs = append(docs, d.WithScore(sr.Score))
	}
	return docs, nil
}
