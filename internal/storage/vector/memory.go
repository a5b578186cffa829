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
	"math"
	"sort"
	"sync"

	"deck-agent/pkg/errors"
)

// MemoryStore 进程内向量存储，进程退出即丢失；用于开发与测试
type MemoryStore struct {
	mu      sync.RWMutex
	indexes map[string]*memIndex
}

type memIndex struct {
	meta    Index
	vectors map[string]*Vector
}

// NewMemoryStore 创建内存向量存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{indexes: make(map[string]*memIndex)}
}

func (s *MemoryStore) Create(_ context.Context, idx *Index) error {
	if idx == nil || idx.Name == "" {
		return errors.Wrap(errors.ErrInvalidArg, "index name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[idx.Name]; ok {
		return errors.Wrapf(errors.ErrConflict, "index %s already exists", idx.Name)
	}
	meta := *idx
	if meta.Distance == "" {
		meta.Distance = DistanceCosine
	}
	s.indexes[idx.Name] = &memIndex{meta: meta, vectors: make(map[string]*Vector)}
	return nil
}

func (s *MemoryStore) lookup(name string) (*memIndex, error) {
	idx, ok := s.indexes[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "index %s", name)
	}
	return idx, nil
}

func (s *MemoryStore) Add(_ context.Context, indexName string, vectors []*Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.lookup(indexName)
	if err != nil {
		return err
	}
	for _, v := range vectors {
		if idx.meta.Dimension > 0 && len(v.Values) != idx.meta.Dimension {
			return fmt.Errorf("vector %s: dimension %d does not match index dimension %d", v.ID, len(v.Values), idx.meta.Dimension)
		}
	}
	for _, v := range vectors {
		idx.vectors[v.ID] = v
	}
	return nil
}

func matches(meta, filter map[string]string) bool {
	for k, want := range filter {
		if meta[k] != want {
			return false
		}
	}
	return true
}

func (s *MemoryStore) Search(_ context.Context, indexName string, query []float64, opts *SearchOptions) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, err := s.lookup(indexName)
	if err != nil {
		return nil, err
	}
	if idx.meta.Dimension > 0 && len(query) != idx.meta.Dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), idx.meta.Dimension)
	}
	if opts == nil {
		opts = &SearchOptions{TopK: 10}
	}

	var out []*SearchResult
	for id, v := range idx.vectors {
		if !matches(v.Metadata, opts.Filter) {
			continue
		}
		score := similarity(idx.meta.Distance, query, v.Values)
		if score < opts.Threshold {
			continue
		}
		out = append(out, &SearchResult{ID: id, Score: score, Metadata: v.Metadata})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	if opts.TopK > 0 && len(out) > opts.TopK {
		out = out[:opts.TopK]
	}
	return out, nil
}

func (s *MemoryStore) DeleteWhere(_ context.Context, indexName string, filter map[string]string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.lookup(indexName)
	if err != nil {
		return 0, err
	}
	n := 0
	for id, v := range idx.vectors {
		if matches(v.Metadata, filter) {
			delete(idx.vectors, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Count(_ context.Context, indexName string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, err := s.lookup(indexName)
	if err != nil {
		return 0, err
	}
	return len(idx.vectors), nil
}

func (s *MemoryStore) DeleteIndex(_ context.Context, indexName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookup(indexName); err != nil {
		return err
	}
	delete(s.indexes, indexName)
	return nil
}

func (s *MemoryStore) ListIndexes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.indexes))
	for n := range s.indexes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) Close() error { return nil }

// EnsureIndex 索引不存在时创建
func EnsureIndex(ctx context.Context, s Store, name string, dimension int) error {
	names, err := s.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("列出索引失败: %w", err)
	}
	for _, n := range names {
		if n == name {
			return nil
		}
	}
	return s.Create(ctx, &Index{Name: name, Dimension: dimension, Distance: DistanceCosine})
}

func similarity(distance string, a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	if distance == DistanceEuclidean {
		sum := 0.0
		for i := range a {
			d := a[i] - b[i]
			sum += d * d
		}
		return 1 / (1 + math.Sqrt(sum))
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
