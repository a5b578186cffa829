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

package cardsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deck-agent/internal/deck"
	"deck-agent/internal/storage/catalog"
)

const setCards = `[
  {"card_set_id":"OP01-001","card_name":"Roronoa Zoro","card_type":"Leader","card_color":"Red","card_power":"5000","life":"5","set_id":"OP-01","sub_types":"Supernovas Straw Hat Crew"},
  {"card_set_id":"OP01-013","card_name":"Sanji","card_type":"Character","card_color":"Red","card_cost":"2","card_power":"4000","counter_amount":"1000","set_id":"OP-01"},
  {"card_set_id":"OP01-026","card_name":"Red Hawk","card_type":"Event","card_color":"Red","card_cost":2,"card_power":null,"counter_amount":"NULL","set_id":"OP-01"},
  {"card_name":"broken record"}
]`

const starterCards = `[
  {"card_set_id":"ST10-001","card_name":"Trafalgar Law","card_type":"Leader","card_color":"Purple Red","card_power":"5000","life":null,"set_id":"ST-10"},
  {"card_set_id":"OP01-013","card_name":"Sanji","card_type":"","card_color":"Red","card_cost":"3","set_id":"OP-01"}
]`

func newAPI(t *testing.T, failST bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/allSetCards/":
			_, _ = w.Write([]byte(setCards))
		case "/api/allSTCards/":
			if failST {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"detail":"boom"}`))
				return
			}
			_, _ = w.Write([]byte(starterCards))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFlexInt(t *testing.T) {
	cases := map[string]*int{
		`3`:      intp(3),
		`"4000"`: intp(4000),
		`" 5 "`:  intp(5),
		`2.0`:    intp(2),
		`null`:   nil,
		`"NULL"`: nil,
		`"-"`:    nil,
	}
	for in, want := range cases {
		var f FlexInt
		require.NoError(t, json.Unmarshal([]byte(in), &f), in)
		assert.Equal(t, want, f.Value, in)
	}
}

func intp(v int) *int { return &v }

func TestSetCode(t *testing.T) {
	assert.Equal(t, "OP01", SetCode("OP-01"))
	assert.Equal(t, "ST10", SetCode("ST-10"))
	assert.Equal(t, "", SetCode(""))
}

func TestMapCard(t *testing.T) {
	tests := []struct {
		name string
		raw  RawCard
		want *deck.Card
	}{
		{
			name: "character with numeric strings",
			raw: RawCard{
				CardSetID: "OP01-013", CardName: "Sanji", CardType: "Character", CardColor: "Red",
				CardCost: FlexInt{intp(2)}, CardPower: FlexInt{intp(4000)}, Counter: FlexInt{intp(1000)},
				SubTypes: "Straw Hat Crew", SetID: "OP-01", CardImage: "https://img/op01-013.png",
			},
			want: &deck.Card{
				ID: "OP01-013", Name: "Sanji", Type: "Character", Color: "Red",
				Cost: intp(2), Power: intp(4000), Counter: intp(1000),
				Category: "Straw Hat Crew", SetCode: "OP01", ImageURL: "https://img/op01-013.png",
			},
		},
		{
			name: "missing type defaults to character",
			raw:  RawCard{CardSetID: "ST01-012", CardName: "Nami", SetID: "ST-01"},
			want: &deck.Card{ID: "ST01-012", Name: "Nami", Type: "Character", SetCode: "ST01"},
		},
		{
			name: "event keeps nil power",
			raw:  RawCard{CardSetID: "OP01-026", CardType: "Event", CardCost: FlexInt{intp(2)}, CardText: "[Counter] +4000"},
			want: &deck.Card{ID: "OP01-026", Type: "Event", Cost: intp(2), Text: "[Counter] +4000"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MapCard(tt.raw)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("MapCard() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMapLeader_DefaultsLife(t *testing.T) {
	l, err := MapLeader(RawCard{CardSetID: "ST10-001", CardType: "Leader", CardColor: "Purple Red"})
	require.NoError(t, err)
	assert.Equal(t, 5, l.Life)
	assert.Equal(t, []string{"Purple", "Red"}, l.Colors)

	_, err = MapLeader(RawCard{CardType: "Leader"})
	assert.Error(t, err)
}

func TestClient_SyncAll(t *testing.T) {
	srv := newAPI(t, false)
	store := catalog.NewMemoryStore()
	c := New(Config{BaseURL: srv.URL})

	stats, err := c.Sync(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Cards)
	assert.Equal(t, 2, stats.Leaders)
	assert.Equal(t, 1, stats.Errors)

	ctx := context.Background()
	zoro, err := store.LeaderByID(ctx, "OP01-001")
	require.NoError(t, err)
	assert.Equal(t, "OP01", zoro.SetCode)
	assert.Equal(t, []string{"Red"}, zoro.Colors)

	law, err := store.LeaderByID(ctx, "ST10-001")
	require.NoError(t, err)
	assert.Equal(t, 5, law.Life)

	cards, err := store.CardsByIDs(ctx, []string{"OP01-013", "OP01-026"})
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Nil(t, cards["OP01-026"].Power)
	assert.Nil(t, cards["OP01-026"].Counter)
	assert.Equal(t, "Event", cards["OP01-026"].Type)
	assert.Equal(t, "Character", cards["OP01-013"].Type)
}

func TestClient_PartialFailure(t *testing.T) {
	srv := newAPI(t, true)
	store := catalog.NewMemoryStore()
	c := New(Config{BaseURL: srv.URL})
	c.client.SetRetryCount(0)

	stats, err := c.Sync(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Cards)
	assert.Equal(t, 1, stats.Leaders)
}

func TestClient_AllEndpointsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL})
	c.client.SetRetryCount(0)

	_, err := c.Sync(context.Background(), catalog.NewMemoryStore())
	assert.Error(t, err)
}

func TestSplit_LaterRecordWins(t *testing.T) {
	cards, leaders, errs := Split([]RawCard{
		{CardSetID: "OP01-013", CardName: "Sanji", CardCost: FlexInt{Value: intp(2)}},
		{CardSetID: "OP01-013", CardName: "Sanji", CardCost: FlexInt{Value: intp(3)}},
	})
	assert.Zero(t, errs)
	assert.Empty(t, leaders)
	require.Len(t, cards, 1)
	assert.Equal(t, 3, *cards[0].Cost)
}
