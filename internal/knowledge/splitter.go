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
	"strings"
	"unicode/utf8"

	einodoc "github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"

	"deck-agent/internal/storage/vector"
)

// 默认切片参数
const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 200
	MetaChunk           = "chunk"
)

// DefaultSeparators 按标题、段落、行、句、词逐级切分
var DefaultSeparators = []string{"\n## ", "\n### ", "\n\n", "\n", ". ", " "}

// Splitter 递归字符切片器，实现 eino document.Transformer；长度按 rune 计
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// NewSplitter 创建切片器；非法参数回落到默认值
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = min(DefaultChunkOverlap, size/2)
	}
	return &Splitter{size: size, overlap: overlap, separators: DefaultSeparators}
}

// Transform 将每个文档切为多个 chunk；ID 为 "{source}#{n}"，元数据沿用原文档
func (s *Splitter) Transform(_ context.Context, src []*schema.Document, _ ...einodoc.TransformerOption) ([]*schema.Document, error) {
	var out []*schema.Document
	for _, d := range src {
		if d == nil {
			continue
		}
		base := d.ID
		if source, ok := d.MetaData[vector.MetaSource].(string); ok && source != "" {
			base = source
		}
		if base == "" {
			return nil, fmt.Errorf("document without id or source")
		}
		for i, chunk := range s.SplitText(d.Content) {
			meta := make(map[string]any, len(d.MetaData)+1)
			for k, v := range d.MetaData {
				meta[k] = v
			}
			meta[MetaChunk] = i
			out = append(out, &schema.Document{
				ID:       fmt.Sprintf("%s#%d", base, i),
				Content:  chunk,
				MetaData: meta,
			})
		}
	}
	return out, nil
}

// SplitText 切分文本，空白 chunk 被丢弃
func (s *Splitter) SplitText(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, seps []string) []string {
	sep, rest := "", []string(nil)
	for i, c := range seps {
		if strings.Contains(text, c) {
			sep, rest = c, seps[i+1:]
			break
		}
	}

	var out, good []string
	for _, piece := range splitKeep(text, sep) {
		if utf8.RuneCountInString(piece) <= s.size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good)...)
			good = nil
		}
		if sep == "" || len(rest) == 0 {
			out = append(out, s.merge(splitKeep(piece, ""))...)
		} else {
			out = append(out, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, s.merge(good)...)
	}
	return out
}

// merge 将小片段拼接为不超过 size 的 chunk，相邻 chunk 保留至多 overlap 的尾部
func (s *Splitter) merge(pieces []string) []string {
	var docs, cur []string
	total := 0
	flush := func() {
		if doc := strings.TrimSpace(strings.Join(cur, "")); doc != "" {
			docs = append(docs, doc)
		}
	}
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n > s.size && len(cur) > 0 {
			flush()
			for len(cur) > 0 && (total > s.overlap || total+n > s.size) {
				total -= utf8.RuneCountInString(cur[0])
				cur = cur[1:]
			}
		}
		cur = append(cur, p)
		total += n
	}
	flush()
	return docs
}

// splitKeep 按 sep 切分，sep 保留在后一片开头；sep 为空时按 rune 切分
func splitKeep(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
