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

package knowledge

import (
	"context"
	"fmt"

	einoindexer "github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// eino devops 中展示的图名
const (
	IngestGraphName = "knowledge_ingest"
	SplitGraphName  = "knowledge_split"
)

// NewIngestChain 编译 文档 → 切片 → 索引 的 eino Chain，输出写入的 chunk ID
func NewIngestChain(ctx context.Context, splitter *Splitter, indexer einoindexer.Indexer) (compose.Runnable[[]*schema.Document, []string], error) {
	if splitter == nil || indexer == nil {
		return nil, fmt.Errorf("ingest chain 需要 splitter 与 indexer")
	}
	chain := compose.NewChain[[]*schema.Document, []string]()
	chain.
		AppendDocumentTransformer(splitter, compose.WithNodeName("split")).
		AppendIndexer(indexer, compose.WithNodeName("index"))
	r, err := chain.Compile(ctx, compose.WithGraphName(IngestGraphName))
	if err != nil {
		return nil, fmt.Errorf("compile ingest chain: %w", err)
	}
	return r, nil
}

// NewSplitChain 只做切片的 Chain，输出 chunk 文本；用于调试切片参数
func NewSplitChain(ctx context.Context, splitter *Splitter) (compose.Runnable[[]*schema.Document, []string], error) {
	if splitter == nil {
		return nil, fmt.Errorf("split chain 需要 splitter")
	}
	chain := compose.NewChain[[]*schema.Document, []string]()
	chain.
		AppendDocumentTransformer(splitter, compose.WithNodeName("split")).
		AppendLambda(compose.InvokableLambda(func(_ context.Context, docs []*schema.Document) ([]string, error) {
			out := make([]string, 0, len(docs))
			for _, d := range docs {
				out = append(out, d.Content)
			}
			return out, nil
		}), compose.WithNodeName("contents"))
	r, err := chain.Compile(ctx, compose.WithGraphName(SplitGraphName))
	if err != nil {
		return nil, fmt.Errorf("compile split chain: %w", err)
	}
	return r, nil
}
