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

// Package vector 知识库使用的向量存储，以及基于它的 eino Indexer / Retriever
package vector

import (
	"context"
)

// Store 向量存储接口
type Store interface {
	// Create 创建向量索引，已存在时返回错误
	Create(ctx context.Context, index *Index) error
	// Add 写入向量，同 ID 覆盖
	Add(ctx context.Context, indexName string, vectors []*Vector) error
	// Search 按相似度降序返回
	Search(ctx context.Context, indexName string, query []float64, options *SearchOptions) ([]*SearchResult, error)
	// DeleteWhere 删除元数据全部匹配 filter 的向量，返回删除条数
	DeleteWhere(ctx context.Context, indexName string, filter map[string]string) (int, error)
	// Count 索引中的向量数，索引不存在时返回 ErrNotFound
	Count(ctx context.Context, indexName string) (int, error)
	DeleteIndex(ctx context.Context, indexName string) error
	ListIndexes(ctx context.Context) ([]string, error)
	Close() error
}

// 距离度量
const (
	DistanceCosine    = "cosine"
	DistanceEuclidean = "euclidean"
)

// Index 向量索引
type Index struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Distance  string `json:"distance"`
}

// Vector 向量数据；Metadata 中 content 为原文，source 为来源文档
type Vector struct {
	ID       string            `json:"id"`
	Values   []float64         `json:"values"`
	Metadata map[string]string `json:"metadata"`
}

// SearchOptions 搜索选项
type SearchOptions struct {
	TopK      int               `json:"top_k"`
	Filter    map[string]string `json:"filter"`
	Threshold float64           `json:"threshold"`
}

// SearchResult 搜索结果
type SearchResult struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}
