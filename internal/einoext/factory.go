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

package einoext

import (
	"context"
	"fmt"
	"strings"

	redisindexer "github.com/cloudwego/eino-ext/components/indexer/redis"
	redisretriever "github.com/cloudwego/eino-ext/components/retriever/redis"
	einoembed "github.com/cloudwego/eino/components/embedding"
	einoindexer "github.com/cloudwego/eino/components/indexer"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"deck-agent/internal/storage/vector"
	"deck-agent/pkg/config"
)

const (
	defaultBatchSize  = 100
	defaultTopK       = 10
	defaultCollection = "knowledge"

	fieldContent = "content"
	fieldVector  = "vector_content"
)

// Components 知识库检索组件；Store 仅 memory 后端非空
type Components struct {
	Indexer   einoindexer.Indexer
	Retriever einoretriever.Retriever
	Store     vector.Store
	close     func() error
}

// Close 释放底层连接
func (c *Components) Close() error {
	if c == nil || c.close == nil {
		return nil
	}
	return c.close()
}

// CollectionName 配置的集合名，缺省为 knowledge
func CollectionName(cfg config.VectorConfig) string {
	if cfg.Collection == "" {
		return defaultCollection
	}
	return cfg.Collection
}

// New 根据 VectorConfig 创建 Indexer 与 Retriever（memory 用 vector.Store；redis 用 eino-ext）
func New(ctx context.Context, cfg config.VectorConfig, embedder einoembed.Embedder, dimension int) (*Components, error) {
	coll := CollectionName(cfg)
	switch t := strings.ToLower(cfg.Type); t {
	case "", "memory":
		store := vector.NewMemoryStore()
		return NewMemory(store, coll)
	case "redis":
		return newRedis(ctx, cfg, coll, embedder, dimension)
	default:
		return nil, fmt.Errorf("unsupported vector type: %s", t)
	}
}

// NewMemory 基于给定 vector.Store 创建组件
func NewMemory(store vector.Store, collection string) (*Components, error) {
	if store == nil {
		return nil, fmt.Errorf("vector type is memory but VectorStore is nil")
	}
	idx, err := vector.NewIndexer(&vector.IndexerConfig{Store: store, Index: collection, BatchSize: defaultBatchSize})
	if err != nil {
		return nil, err
	}
	ret, err := vector.NewRetriever(&vector.RetrieverConfig{Store: store, Index: collection, TopK: defaultTopK})
	if err != nil {
		return nil, err
	}
	return &Components{Indexer: idx, Retriever: ret, Store: store, close: store.Close}, nil
}

func newRedis(ctx context.Context, cfg config.VectorConfig, coll string, embedder einoembed.Embedder, dimension int) (*Components, error) {
	opts, err := RedisOptionsFromVectorConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("redis options: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	prefix := coll + ":"
	if err := ensureRedisIndex(ctx, client, coll, prefix, dimension); err != nil {
		_ = client.Close()
		return nil, err
	}

	idx, err := redisindexer.NewIndexer(ctx, &redisindexer.IndexerConfig{
		Client:           client,
		KeyPrefix:        prefix,
		BatchSize:        defaultBatchSize,
		Embedding:        embedder,
		DocumentToHashes: documentToHashes,
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis indexer: %w", err)
	}
	ret, err := redisretriever.NewRetriever(ctx, &redisretriever.RetrieverConfig{
		Client:       client,
		Index:        coll,
		VectorField:  fieldVector,
		ReturnFields: []string{fieldContent, vector.MetaSource},
		TopK:         defaultTopK,
		Embedding:    embedder,
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis retriever: %w", err)
	}
	return &Components{Indexer: idx, Retriever: ret, close: client.Close}, nil
}

func documentToHashes(_ context.Context, doc *schema.Document) (*redisindexer.Hashes, error) {
	source, _ := doc.MetaData[vector.MetaSource].(string)
	return &redisindexer.Hashes{
		Key: doc.ID,
		Field2Value: map[string]redisindexer.FieldValue{
			fieldContent:      {Value: doc.Content, EmbedKey: fieldVector},
			vector.MetaSource: {Value: source},
		},
	}, nil
}

// ensureRedisIndex 创建 RediSearch 向量索引，已存在时忽略
func ensureRedisIndex(ctx context.Context, client *redis.Client, index, prefix string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("redis 向量索引需要 embedding dimension")
	}
	err := client.FTCreate(ctx, index,
		&redis.FTCreateOptions{OnHash: true, Prefix: []interface{}{prefix}},
		&redis.FieldSchema{FieldName: fieldContent, FieldType: redis.SearchFieldTypeText},
		&redis.FieldSchema{FieldName: vector.MetaSource, FieldType: redis.SearchFieldTypeTag},
		&redis.FieldSchema{
			FieldName: fieldVector,
			FieldType: redis.SearchFieldTypeVector,
			VectorArgs: &redis.FTVectorArgs{FlatOptions: &redis.FTFlatOptions{
				Type:           "FLOAT32",
				Dim:            dimension,
				DistanceMetric: "COSINE",
			}},
		},
	).Err()
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "index already exists") {
		return fmt.Errorf("redis FT.CREATE %s: %w", index, err)
	}
	return nil
}
