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

package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cloudwego/eino/schema"
)

// Registry 进程级能力表：启动时注册，Seal 之后只读，读取不加锁
type Registry struct {
	mu     sync.Mutex
	sealed atomic.Bool
	caps   map[string]*Capability
	order  []string
}

// NewRegistry 创建新 Registry
func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]*Capability)}
}

// Register 注册能力；重名、缺少执行函数、未知变体或已 Seal 时返回错误
func (r *Registry) Register(c *Capability) error {
	if c == nil || c.Name == "" {
		return fmt.Errorf("tools: capability name is required")
	}
	if c.Execute == nil {
		return fmt.Errorf("tools: capability %q has no execute function", c.Name)
	}
	if _, ok := dispatchTable[c.Kind]; !ok {
		return fmt.Errorf("tools: capability %q has unknown kind %s", c.Name, c.Kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed.Load() {
		return fmt.Errorf("tools: registry sealed, cannot register %q", c.Name)
	}
	if _, exists := r.caps[c.Name]; exists {
		return fmt.Errorf("tools: capability %q already registered", c.Name)
	}
	r.caps[c.Name] = c
	r.order = append(r.order, c.Name)
	return nil
}

// MustRegister 注册失败时 panic，用于启动阶段
func (r *Registry) MustRegister(caps ...*Capability) {
	for _, c := range caps {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

// Seal 结束注册阶段
func (r *Registry) Seal() { r.sealed.Store(true) }

// Names 按注册顺序返回全部能力名
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Resolve 按请求顺序返回已知能力，静默忽略未知名称；调用方以返回的 Set 为准
func (r *Registry) Resolve(names ...string) *Set {
	s := &Set{byName: make(map[string]*Capability, len(names))}
	for _, n := range names {
		c, ok := r.caps[n]
		if !ok {
			continue
		}
		if _, dup := s.byName[n]; dup {
			continue
		}
		s.byName[n] = c
		s.list = append(s.list, c)
	}
	return s
}

// Describe 渲染能力说明，供拼装系统提示词
func (r *Registry) Describe(names ...string) string {
	return r.Resolve(names...).Describe()
}

// Set 解析后的有序能力子集
type Set struct {
	list   []*Capability
	byName map[string]*Capability
}

// Get 按名称查找
func (s *Set) Get(name string) (*Capability, bool) {
	c, ok := s.byName[name]
	return c, ok
}

// Len 能力数
func (s *Set) Len() int { return len(s.list) }

// Names 有序名称
func (s *Set) Names() []string {
	out := make([]string, len(s.list))
	for i, c := range s.list {
		out[i] = c.Name
	}
	return out
}

// Infos 绑定到模型的 schema 列表
func (s *Set) Infos() []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, len(s.list))
	for i, c := range s.list {
		out[i] = c.Info()
	}
	return out
}

// FinalAnswers 子集中最终回答变体的数量
func (s *Set) FinalAnswers() int {
	n := 0
	for _, c := range s.list {
		if c.Kind == KindFinalAnswer {
			n++
		}
	}
	return n
}

// UnknownMessage 调用了子集外工具时回给模型的提示
func (s *Set) UnknownMessage(name string) string {
	return fmt.Sprintf("Unknown tool: %s. Available tools: %s", name, strings.Join(s.Names(), ", "))
}

// Describe 渲染为提示词中的工具说明块
func (s *Set) Describe() string {
	if len(s.list) == 0 {
		return "No tools available."
	}
	var b strings.Builder
	for _, c := range s.list {
		fmt.Fprintf(&b, "**%s** — %s\n", c.Name, c.Description)
		if len(c.Params) > 0 {
			b.WriteString("  Parameters:\n")
			for _, p := range c.Params {
				desc := p.Desc
				if desc == "" {
					desc = string(p.Type)
				}
				req := ""
				if p.Required {
					req = " (required)"
				}
				fmt.Fprintf(&b, "    - %s: %s%s\n", p.Name, desc, req)
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Validate 检查子集中最终回答变体的数量是否在 [min, max] 内
func (s *Set) Validate(min, max int) error {
	n := s.FinalAnswers()
	if n < min || n > max {
		var names []string
		for _, c := range s.list {
			if c.Kind == KindFinalAnswer {
				names = append(names, c.Name)
			}
		}
		sort.Strings(names)
		return fmt.Errorf("tools: capability set has %d final-answer tools %v, want between %d and %d", n, names, min, max)
	}
	return nil
}
