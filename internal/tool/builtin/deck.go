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

package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"deck-agent/internal/agent/tools"
	"deck-agent/internal/deck"
	"deck-agent/pkg/errors"
)

var cardItem = &tools.Param{Type: schema.Object, Fields: []tools.Param{
	{Name: "card_id", Type: schema.String, Desc: "The card ID (e.g. 'OP01-004').", Required: true},
	{Name: "quantity", Type: schema.Integer, Desc: "Number of copies to add (1-4).", Required: true},
}}

var stringItem = &tools.Param{Type: schema.String}

func planCards(args tools.Args) []deck.PlanCard {
	objs := args.Objects("cards")
	out := make([]deck.PlanCard, 0, len(objs))
	for _, o := range objs {
		id := o.String("card_id")
		if id == "" {
			continue
		}
		out = append(out, deck.PlanCard{CardID: id, Quantity: o.Int("quantity", 1)})
	}
	return out
}

// modificationResult 校验错误只回文本；成功时带上前端载荷
func modificationResult(m *deck.Modification) *tools.Result {
	if !m.OK() {
		return &tools.Result{Message: strings.Join(m.Errors, "\n")}
	}
	return &tools.Result{Message: m.Summary, Data: m.ActionData()}
}

// loadDeck 按参数或上下文中的 deck_id 加载卡组；返回的文本非空时表示校验未通过
func loadDeck(ctx context.Context, env *tools.Env, args tools.Args, missingText string) (*deck.Deck, string, error) {
	id := args.String("deck_id")
	if id == "" && env != nil {
		id = env.Context.DeckID()
	}
	if id == "" {
		return nil, missingText, nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, "Invalid deck_id format: " + id, nil
	}
	s, err := session(env)
	if err != nil {
		return nil, "", err
	}
	d, err := s.Deck(ctx, id)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, "Deck not found: " + id, nil
		}
		return nil, "", err
	}
	return d, "", nil
}

func deckIDParam(desc string) tools.Param {
	return tools.Param{Name: "deck_id", Type: schema.String, Desc: desc}
}

// GetDeckInfo 卡组详情
func GetDeckInfo() *tools.Capability {
	return &tools.Capability{
		Name: ToolGetDeckInfo,
		Description: "Load complete information about a deck including its leader, all cards, " +
			"quantities, stats, and metadata. Use the deck_id from the conversation context " +
			"or ask the user for it.",
		Kind:   tools.KindQuery,
		Params: []tools.Param{deckIDParam("UUID of the deck to load.")},
		Execute: func(ctx context.Context, env *tools.Env, args tools.Args) (*tools.Result, error) {
			d, text, err := loadDeck(ctx, env, args, "No deck_id provided. Please specify a deck or open one first.")
			if err != nil || d == nil {
				return &tools.Result{Message: text}, err
			}
			return &tools.Result{Message: deck.FormatInfo(d)}, nil
		},
	}
}

// ValidateDeck 构筑规则校验
func ValidateDeck() *tools.Capability {
	return &tools.Capability{
		Name: ToolValidateDeck,
		Description: "Validate a deck against official One Piece TCG rules: " +
			"50-card requirement, 4-copy limit, and color identity. " +
			"Returns whether the deck is valid and any errors.",
		Kind:   tools.KindQuery,
		Params: []tools.Param{deckIDParam("UUID of the deck to validate.")},
		Execute: func(ctx context.Context, env *tools.Env, args tools.Args) (*tools.Result, error) {
			d, text, err := loadDeck(ctx, env, args, "No deck_id provided.")
			if err != nil || d == nil {
				return &tools.Result{Message: text}, err
			}
			ok, problems := deck.Validate(d)
			if ok {
				return &tools.Result{Message: "Deck is **valid** and meets all OPTCG construction rules."}, nil
			}
			lines := []string{"Deck has the following **validation errors**:\n"}
			for _, p := range problems {
				lines = append(lines, "- "+p)
			}
			return &tools.Result{Message: strings.Join(lines, "\n")}, nil
		},
	}
}

// CalculateStats 卡组统计
func CalculateStats() *tools.Capability {
	return &tools.Capability{
		Name: ToolCalculateStats,
		Description: "Calculate detailed statistics for a deck: cost curve, color distribution, " +
			"power distribution, type breakdown, counter distribution, and more.",
		Kind:   tools.KindQuery,
		Params: []tools.Param{deckIDParam("UUID of the deck to analyze.")},
		Execute: func(ctx context.Context, env *tools.Env, args tools.Args) (*tools.Result, error) {
			d, text, err := loadDeck(ctx, env, args, "No deck_id provided.")
			if err != nil || d == nil {
				return &tools.Result{Message: text}, err
			}
			return &tools.Result{Message: deck.FormatStats(d.Name, deck.CalculateStats(d))}, nil
		},
	}
}

func executor(env *tools.Env) (*deck.Executor, error) {
	s, err := session(env)
	if err != nil {
		return nil, err
	}
	return deck.NewExecutor(s), nil
}

// SetDeckLeader 设置 Leader
func SetDeckLeader() *tools.Capability {
	return &tools.Capability{
		Name: ToolSetDeckLeader,
		Description: "Set the leader card for the deck being built in the deck builder. " +
			"Validates that the leader exists in the database. " +
			"The frontend will update the deck builder UI automatically.",
		Kind: tools.KindMutation,
		Params: []tools.Param{
			{Name: "leader_id", Type: schema.String, Desc: "The leader card ID (e.g. 'OP01-001').", Required: true},
		},
		Execute: func(ctx context.Context, env *tools.Env, args tools.Args) (*tools.Result, error) {
			id := args.String("leader_id")
			if id == "" {
				return &tools.Result{Message: "leader_id is required."}, nil
			}
			ex, err := executor(env)
			if err != nil {
				return nil, err
			}
			m, err := ex.SetLeader(ctx, id)
			if err != nil {
				return nil, err
			}
			if !m.OK() {
				return &tools.Result{Message: strings.Join(m.Errors, "\n") + " Use search_cards to find valid leaders."}, nil
			}
			return modificationResult(m), nil
		},
	}
}

// AddCardsToDeck 加入卡牌
func AddCardsToDeck() *tools.Capability {
	return &tools.Capability{
		Name: ToolAddCards,
		Description: "Add one or more cards to the deck being built in the deck builder. " +
			"Validates that all cards exist in the database and optionally checks color identity " +
			"against the leader's colors. The frontend enforces the 4-copy limit automatically.",
		Kind: tools.KindMutation,
		Params: []tools.Param{
			{Name: "cards", Type: schema.Array, Desc: "Array of cards to add, each with card_id and quantity.", Required: true, Elem: cardItem},
			{Name: "leader_colors", Type: schema.Array, Desc: "The leader's colors for color identity validation (e.g. ['Red', 'Green']).", Elem: stringItem},
		},
		Execute: func(ctx context.Context, env *tools.Env, args tools.Args) (*tools.Result, error) {
			ex, err := executor(env)
			if err != nil {
				return nil, err
			}
			m, err := ex.AddCards(ctx, planCards(args), args.Strings("leader_colors"))
			if err != nil {
				return nil, err
			}
			return modificationResult(m), nil
		},
	}
}

// RemoveCardsFromDeck 移除卡牌
func RemoveCardsFromDeck() *tools.Capability {
	return &tools.Capability{
		Name:        ToolRemoveCards,
		Description: "Remove one or more cards from the deck being built in the deck builder.",
		Kind:        tools.KindMutation,
		Params: []tools.Param{
			{Name: "card_ids", Type: schema.Array, Desc: "Array of card IDs to remove from the deck.", Required: true, Elem: stringItem},
		},
		Execute: func(ctx context.Context, env *tools.Env, args tools.Args) (*tools.Result, error) {
			m, err := deck.NewExecutor(nil).RemoveCards(ctx, args.Strings("card_ids"))
			if err != nil {
				return nil, err
			}
			return modificationResult(m), nil
		},
	}
}

// ManageDeck 主循环直接使用的卡组变更入口
func ManageDeck() *tools.Capability {
	return &tools.Capability{
		Name: ToolManageDeck,
		Description: "Modify the deck in the deck builder: set a leader, add cards, or remove cards. " +
			"Pass structured parameters: the action type plus the relevant data. " +
			"You MUST provide specific card IDs (obtained from search_cards), never guess IDs. " +
			"Include leader_colors when adding cards for color identity validation.",
		Kind: tools.KindMutation,
		Params: []tools.Param{
			{
				Name: "action", Type: schema.String, Desc: "The type of deck modification to perform.", Required: true,
				Enum: []string{deck.ActionSetLeader, deck.ActionAddCards, deck.ActionRemoveCards},
			},
			{Name: "leader_id", Type: schema.String, Desc: "Leader card ID (for set_leader action)."},
			{Name: "cards", Type: schema.Array, Desc: "Cards to add (for add_cards action). Each item has card_id and quantity.", Elem: cardItem},
			{Name: "card_ids", Type: schema.Array, Desc: "Card IDs to remove (for remove_cards action).", Elem: stringItem},
			{Name: "leader_colors", Type: schema.Array, Desc: "The leader's colors for color identity validation when adding cards.", Elem: stringItem},
		},
		Annotate: func(args tools.Args) string {
			return "Modifying deck: " + args.String("action")
		},
		Execute: func(ctx context.Context, env *tools.Env, args tools.Args) (*tools.Result, error) {
			args = tools.RepairJSONStrings(args)
			action := args.String("action")
			var (
				m   *deck.Modification
				err error
			)
			switch action {
			case deck.ActionSetLeader:
				id := args.String("leader_id")
				if id == "" {
					return &tools.Result{Message: "leader_id is required for set_leader action."}, nil
				}
				ex, xerr := executor(env)
				if xerr != nil {
					return nil, xerr
				}
				m, err = ex.SetLeader(ctx, id)
			case deck.ActionAddCards:
				cards := planCards(args)
				if len(cards) == 0 {
					return &tools.Result{Message: "cards array is required for add_cards action."}, nil
				}
				ex, xerr := executor(env)
				if xerr != nil {
					return nil, xerr
				}
				m, err = ex.AddCards(ctx, cards, args.Strings("leader_colors"))
			case deck.ActionRemoveCards:
				ids := args.Strings("card_ids")
				if len(ids) == 0 {
					return &tools.Result{Message: "card_ids array is required for remove_cards action."}, nil
				}
				m, err = deck.NewExecutor(nil).RemoveCards(ctx, ids)
			default:
				return &tools.Result{Message: fmt.Sprintf(
					"Unknown action: %s. Use 'set_leader', 'add_cards', or 'remove_cards'.", action)}, nil
			}
			if err != nil {
				return nil, err
			}
			return modificationResult(m), nil
		},
	}
}
