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

// Package tools 工具能力的注册、描述与分发。
// 能力是一组封闭的变体（Kind），每个变体携带自己的参数契约与执行函数，经分发表执行。
package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"deck-agent/internal/agent/state"
	"deck-agent/internal/storage/catalog"
)

// Kind 能力变体
type Kind int

const (
	// KindFinalAnswer 输出最终回答，结果总是 terminal
	KindFinalAnswer Kind = iota + 1
	// KindQuery 只读查询
	KindQuery
	// KindMutation 确定性的卡组变更
	KindMutation
	// KindDelegate 以受限工具子集开启子代理
	KindDelegate
)

func (k Kind) String() string {
	switch k {
	case KindFinalAnswer:
		return "final_answer"
	case KindQuery:
		return "query"
	case KindMutation:
		return "mutation"
	case KindDelegate:
		return "delegate"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Param 参数契约中的一项，按声明顺序渲染
type Param struct {
	Name     string
	Type     schema.DataType
	Desc     string
	Required bool
	Enum     []string
	// Elem 数组元素；元素为对象时用 Elem.Fields 描述
	Elem   *Param
	Fields []Param
}

func (p Param) info() *schema.ParameterInfo {
	pi := &schema.ParameterInfo{
		Type:     p.Type,
		Desc:     p.Desc,
		Required: p.Required,
		Enum:     p.Enum,
	}
	if p.Elem != nil {
		pi.ElemInfo = p.Elem.info()
	}
	if len(p.Fields) > 0 {
		pi.SubParams = make(map[string]*schema.ParameterInfo, len(p.Fields))
		for _, f := range p.Fields {
			pi.SubParams[f.Name] = f.info()
		}
	}
	return pi
}

// Result 工具执行结果：Message 回给模型（及用户），Data 是交给前端的副作用载荷
type Result struct {
	Message  string         `json:"message"`
	Terminal bool           `json:"terminal"`
	Data     map[string]any `json:"data,omitempty"`
}

// ExecuteFunc 能力的执行函数。校验失败写进 Result.Message；返回 error 表示执行本身失败。
type ExecuteFunc func(ctx context.Context, env *Env, args Args) (*Result, error)

// Capability 一个可被模型调用的能力
type Capability struct {
	Name        string
	Description string
	Kind        Kind
	Params      []Param
	// Annotate 生成界面展示用的推理标签，可为空
	Annotate func(args Args) string
	Execute  ExecuteFunc
}

// Info 转为模型绑定用的 schema
func (c *Capability) Info() *schema.ToolInfo {
	params := make(map[string]*schema.ParameterInfo, len(c.Params))
	for _, p := range c.Params {
		params[p.Name] = p.info()
	}
	return &schema.ToolInfo{
		Name:        c.Name,
		Desc:        c.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}

// Label 推理标签，未定义 Annotate 时为 "Using {name} tool..."
func (c *Capability) Label(args Args) string {
	if c.Annotate != nil {
		if s := c.Annotate(args); s != "" {
			return s
		}
	}
	return fmt.Sprintf("Using %s tool...", c.Name)
}

// Env 单次工具调用可见的回合资源。Catalog 为回合独占的存储会话。
type Env struct {
	ConversationID string
	Context        state.AgentContext
	Catalog        catalog.Session
	Model          model.ToolCallingChatModel
	Logger         *slog.Logger
}

func (e *Env) logger() *slog.Logger {
	if e == nil || e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}
