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

package secrets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"deck-agent/pkg/errors"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		name        string
		provider    string
		wantErr     bool
		errContains string
	}{
		{name: "memory", provider: "memory"},
		{name: "env", provider: "env"},
		{name: "default is env", provider: ""},
		{name: "unknown provider", provider: "unknown", wantErr: true, errContains: "unsupported secret provider"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewStore(Config{Provider: tc.provider})
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tc.errContains) {
					t.Fatalf("error = %q, want contains %q", err.Error(), tc.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if store == nil {
				t.Fatalf("store should not be nil")
			}
		})
	}
}

func TestMemoryAndEnvStoreBasicContract(t *testing.T) {
	ctx := context.Background()
	for _, s := range []Store{NewMemoryStore(), NewEnvStore()} {
		if err := s.Set(ctx, "secret_test_key", "value"); err != nil {
			t.Fatalf("set secret failed: %v", err)
		}
		got, err := s.Get(ctx, "secret_test_key")
		if err != nil {
			t.Fatalf("get secret failed: %v", err)
		}
		if got != "value" {
			t.Fatalf("get secret = %q, want value", got)
		}
		if err := s.Delete(ctx, "secret_test_key"); err != nil {
			t.Fatalf("delete secret failed: %v", err)
		}
		if _, err := s.Get(ctx, "secret_test_key"); err == nil {
			t.Fatalf("expected error after delete")
		}
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	_ = mem.Set(ctx, "openrouter/api_key", "sk-vault")
	t.Setenv("DECK_AGENT_TEST_KEY", "sk-env")

	cases := map[string]string{
		"vault:openrouter/api_key": "sk-vault",
		"${DECK_AGENT_TEST_KEY}":   "sk-env",
		"${DECK_AGENT_UNSET_KEY}":  "${DECK_AGENT_UNSET_KEY}",
		"sk-plain":                 "sk-plain",
	}
	for ref, want := range cases {
		got, err := Resolve(ctx, mem, ref)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", ref, err)
		}
		if got != want {
			t.Errorf("Resolve(%q) = %q, want %q", ref, got, want)
		}
	}

	if _, err := Resolve(ctx, nil, "vault:x"); err == nil {
		t.Error("vault reference without store should fail")
	}
}

func TestVaultStore_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/sys/health":
			_ = json.NewEncoder(w).Encode(map[string]any{"initialized": true, "sealed": false})
		case "/v1/secret/data/deck-agent/openai":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"data": map[string]any{"value": "sk-from-vault"}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
		}
	}))
	defer srv.Close()

	store, err := NewVaultStore(VaultConfig{Address: srv.URL, Token: "t", PathPrefix: "secret/data/deck-agent/"})
	if err != nil {
		t.Fatalf("NewVaultStore: %v", err)
	}
	got, err := store.Get(context.Background(), "openai")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "sk-from-vault" {
		t.Fatalf("Get = %q", got)
	}
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing secret, got %v", err)
	}
}

func TestEnvStore_MapsPathToEnvName(t *testing.T) {
	if got := EnvName("openai/api_key"); got != "DECK_AGENT_OPENAI_API_KEY" {
		t.Fatalf("EnvName = %q", got)
	}
	if got := EnvName("DECK_AGENT_KIMI_KEY"); got != "DECK_AGENT_KIMI_KEY" {
		t.Fatalf("EnvName should keep prefixed names, got %q", got)
	}

	t.Setenv("DECK_AGENT_KIMI_API_KEY", "sk-kimi")
	got, err := Resolve(context.Background(), NewEnvStore(), "vault:kimi/api-key")
	if err != nil || got != "sk-kimi" {
		t.Fatalf("Resolve via env store = %q, %v", got, err)
	}

	_, err = NewEnvStore().Get(context.Background(), "missing/key")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("missing env secret should be ErrNotFound, got %v", err)
	}
	_, err = NewMemoryStore(map[string]string{"a": "1"}).Get(context.Background(), "b")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("missing memory secret should be ErrNotFound, got %v", err)
	}
}
