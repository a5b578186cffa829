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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseArgs(t *testing.T) {
	assert.Equal(t, Args{}, ParseArgs(""))
	assert.Equal(t, Args{}, ParseArgs("{not json"))
	assert.Equal(t, Args{}, ParseArgs("[1,2]"))
	assert.Equal(t, Args{"name": "Zoro"}, ParseArgs(`{"name":"Zoro"}`))
}

func TestRepairJSONStrings(t *testing.T) {
	in := Args{
		"card_ids": `["OP01-001","OP01-002"]`,
		"plan":     `{"leader":"OP01-001"}`,
		"broken":   `[not json`,
		"name":     "Zoro",
		"limit":    float64(3),
	}
	out := RepairJSONStrings(in)
	assert.Equal(t, []any{"OP01-001", "OP01-002"}, out["card_ids"])
	assert.Equal(t, map[string]any{"leader": "OP01-001"}, out["plan"])
	assert.Equal(t, `[not json`, out["broken"])
	assert.Equal(t, "Zoro", out["name"])
	assert.Equal(t, `["OP01-001","OP01-002"]`, in["card_ids"], "input untouched")
}

func TestStripProxyPrefix(t *testing.T) {
	assert.Equal(t, "search_cards", StripProxyPrefix("proxy_search_cards"))
	assert.Equal(t, "search_cards", StripProxyPrefix("search_cards"))
}

func TestArgsAccessors(t *testing.T) {
	a := Args{
		"s":    "x",
		"f":    float64(4),
		"n":    "7",
		"list": []any{"a", 1, "b"},
		"one":  "c",
		"objs": []any{map[string]any{"card_id": "A"}, "skip"},
	}
	assert.Equal(t, "x", a.String("s"))
	assert.Equal(t, "4", a.String("f"))
	assert.Equal(t, "def", a.StringOr("missing", "def"))
	assert.Equal(t, 4, a.Int("f", 0))
	assert.Equal(t, 7, a.Int("n", 0))
	assert.Equal(t, 9, a.Int("missing", 9))
	assert.Nil(t, a.IntPtr("s"))
	assert.Equal(t, []string{"a", "b"}, a.Strings("list"))
	assert.Equal(t, []string{"c"}, a.Strings("one"))
	objs := a.Objects("objs")
	if assert.Len(t, objs, 1) {
		assert.Equal(t, "A", objs[0].String("card_id"))
	}
	assert.Equal(t, `{"s":"x"}`, Args{"s": "x"}.JSON())
}
