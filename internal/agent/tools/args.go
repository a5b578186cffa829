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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ProxyPrefix 部分后端会给工具名加上的前缀
const ProxyPrefix = "proxy_"

// Args 已解析的工具参数
type Args map[string]any

// Invocation 一次工具调用，只在一次迭代内存在
type Invocation struct {
	ID   string
	Name string
	Args Args
}

// ParseArgs 解析参数 JSON；为空或无法解析为对象时返回空参数
func ParseArgs(raw string) Args {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Args{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil || m == nil {
		return Args{}
	}
	return m
}

// JSON 序列化为参数 JSON
func (a Args) JSON() string {
	if a == nil {
		return "{}"
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// StripProxyPrefix 去掉工具名上多余的 proxy_ 前缀
func StripProxyPrefix(name string) string {
	return strings.TrimPrefix(name, ProxyPrefix)
}

// RepairJSONStrings 把以 [ 或 { 开头的字符串值按 JSON 解析；解析失败保留原值
func RepairJSONStrings(a Args) Args {
	out := make(Args, len(a))
	for k, v := range a {
		s, ok := v.(string)
		if ok && (strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{")) {
			var parsed any
			if err := json.Unmarshal([]byte(s), &parsed); err == nil {
				out[k] = parsed
				continue
			}
		}
		out[k] = v
	}
	return out
}

// String 字符串参数；数字等标量按文本返回
func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool, int, int64, json.Number:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

// StringOr 为空时返回 def
func (a Args) StringOr(key, def string) string {
	if s := a.String(key); s != "" {
		return s
	}
	return def
}

// IntPtr 整数参数，缺失或无法解析时为 nil
func (a Args) IntPtr(key string) *int {
	var n int
	switch v := a[key].(type) {
	case float64:
		n = int(v)
	case int:
		n = v
	case int64:
		n = int(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return nil
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		n = i
	default:
		return nil
	}
	return &n
}

// Int 整数参数，缺失时返回 def
func (a Args) Int(key string, def int) int {
	if p := a.IntPtr(key); p != nil {
		return *p
	}
	return def
}

// Strings 字符串列表；单个字符串视为只有一项
func (a Args) Strings(key string) []string {
	switch v := a[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, it := range v {
			if s, ok := it.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// Objects 对象列表
func (a Args) Objects(key string) []Args {
	switch v := a[key].(type) {
	case []map[string]any:
		out := make([]Args, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out
	case []any:
		out := make([]Args, 0, len(v))
		for _, it := range v {
			if m, ok := it.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}
