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

package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"deck-agent/internal/deck"
	"deck-agent/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

// querier pgxpool.Pool 与 pgx.Tx 的公共子集
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// storeErr 标记为存储层错误，供子 Agent 判断是否回滚
func storeErr(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, op), errors.ErrStorage)
}

// StorePg Postgres 实现
type StorePg struct {
	pool *pgxpool.Pool
	pgReader
}

// NewStorePg 创建基于 PostgreSQL 的卡牌库
func NewStorePg(ctx context.Context, dsn string, poolSize int) (*StorePg, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if poolSize > 0 {
		config.MaxConns = int32(poolSize)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &StorePg{pool: pool, pgReader: pgReader{q: pool}}, nil
}

// EnsureSchema 建表（幂等）
func (s *StorePg) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return storeErr(err, "create catalog schema")
}

// Close 关闭连接池
func (s *StorePg) Close() {
	s.pool.Close()
}

// Begin 开启回合会话；事务在首次查询时才真正开启
func (s *StorePg) Begin(_ context.Context) (Session, error) {
	return &pgSession{pool: s.pool}, nil
}

func (s *StorePg) UpsertCards(ctx context.Context, cards []*deck.Card) error {
	batch := &pgx.Batch{}
	for _, c := range cards {
		batch.Queue(`INSERT INTO cards (id, name, type, color, cost, power, counter, attribute, text, trigger, rarity, category, set_code, image_url)
			VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,NULLIF($8,''),NULLIF($9,''),NULLIF($10,''),NULLIF($11,''),NULLIF($12,''),NULLIF($13,''),NULLIF($14,''))
			ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, type=EXCLUDED.type, color=EXCLUDED.color, cost=EXCLUDED.cost,
			power=EXCLUDED.power, counter=EXCLUDED.counter, attribute=EXCLUDED.attribute, text=EXCLUDED.text, trigger=EXCLUDED.trigger,
			rarity=EXCLUDED.rarity, category=EXCLUDED.category, set_code=EXCLUDED.set_code, image_url=EXCLUDED.image_url, updated_at=now()`,
			c.ID, c.Name, c.Type, c.Color, c.Cost, c.Power, c.Counter, c.Attribute, c.Text, c.Trigger, c.Rarity, c.Category, c.SetCode, c.ImageURL)
	}
	return storeErr(s.pool.SendBatch(ctx, batch).Close(), "upsert cards")
}

func (s *StorePg) UpsertLeaders(ctx context.Context, leaders []*deck.Leader) error {
	batch := &pgx.Batch{}
	for _, l := range leaders {
		colors := l.Colors
		if colors == nil {
			colors = []string{}
		}
		batch.Queue(`INSERT INTO leaders (id, name, life, power, colors, attribute, text, category, set_code, image_url)
			VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),NULLIF($7,''),NULLIF($8,''),NULLIF($9,''),NULLIF($10,''))
			ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, life=EXCLUDED.life, power=EXCLUDED.power, colors=EXCLUDED.colors,
			attribute=EXCLUDED.attribute, text=EXCLUDED.text, category=EXCLUDED.category, set_code=EXCLUDED.set_code,
			image_url=EXCLUDED.image_url, updated_at=now()`,
			l.ID, l.Name, l.Life, l.Power, colors, l.Attribute, l.Text, l.Category, l.SetCode, l.ImageURL)
	}
	return storeErr(s.pool.SendBatch(ctx, batch).Close(), "upsert leaders")
}

func (s *StorePg) SaveDeck(ctx context.Context, d *deck.Deck) error {
	deck.Summarize(d)
	dist, _ := json.Marshal(d.ColorDistribution)
	return storeErr(pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO decks (id, name, description, leader_id, total_cards, avg_cost, color_distribution)
			 VALUES ($1,$2,NULLIF($3,''),NULLIF($4,''),$5,$6,$7)
			 ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, description=EXCLUDED.description, leader_id=EXCLUDED.leader_id,
			 total_cards=EXCLUDED.total_cards, avg_cost=EXCLUDED.avg_cost, color_distribution=EXCLUDED.color_distribution, updated_at=now()`,
			d.ID, d.Name, d.Description, d.LeaderID, d.TotalCards, d.AvgCost, dist)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM deck_cards WHERE deck_id = $1`, d.ID); err != nil {
			return err
		}
		for _, dc := range d.Cards {
			if _, err := tx.Exec(ctx, `INSERT INTO deck_cards (deck_id, card_id, quantity) VALUES ($1,$2,$3)`,
				d.ID, dc.Card.ID, dc.Quantity); err != nil {
				return err
			}
		}
		return nil
	}), "save deck")
}

// pgSession 回合会话：首次查询时开启事务，Rollback 后下次查询重新开启
type pgSession struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (s *pgSession) reader(ctx context.Context) (pgReader, error) {
	if s.tx == nil {
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
		if err != nil {
			return pgReader{}, storeErr(err, "begin session")
		}
		s.tx = tx
	}
	return pgReader{q: s.tx}, nil
}

func (s *pgSession) SearchCards(ctx context.Context, f CardFilter) ([]*deck.Card, error) {
	r, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	return r.SearchCards(ctx, f)
}

func (s *pgSession) SearchLeaders(ctx context.Context, f LeaderFilter) ([]*deck.Leader, error) {
	r, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	return r.SearchLeaders(ctx, f)
}

func (s *pgSession) LeaderByID(ctx context.Context, id string) (*deck.Leader, error) {
	r, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	return r.LeaderByID(ctx, id)
}

func (s *pgSession) CardsByIDs(ctx context.Context, ids []string) (map[string]*deck.Card, error) {
	r, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	return r.CardsByIDs(ctx, ids)
}

func (s *pgSession) Deck(ctx context.Context, id string) (*deck.Deck, error) {
	r, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	return r.Deck(ctx, id)
}

func (s *pgSession) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback(ctx)
	s.tx = nil
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return storeErr(err, "rollback session")
	}
	return nil
}

func (s *pgSession) Close(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit(ctx)
	s.tx = nil
	return storeErr(err, "commit session")
}

// pgReader 只读查询，可以跑在连接池或事务上
type pgReader struct {
	q querier
}

const cardColumns = `id, name, type, COALESCE(color,''), cost, power, counter, COALESCE(attribute,''), COALESCE(text,''),
	COALESCE(trigger,''), COALESCE(rarity,''), COALESCE(category,''), COALESCE(set_code,''), COALESCE(image_url,'')`

const deckCardColumns = `c.id, c.name, c.type, COALESCE(c.color,''), c.cost, c.power, c.counter, COALESCE(c.attribute,''),
	COALESCE(c.text,''), COALESCE(c.trigger,''), COALESCE(c.rarity,''), COALESCE(c.category,''), COALESCE(c.set_code,''),
	COALESCE(c.image_url,'')`

const leaderColumns = `id, name, life, power, colors, COALESCE(attribute,''), COALESCE(text,''), COALESCE(category,''),
	COALESCE(set_code,''), COALESCE(image_url,'')`

type whereBuilder struct {
	conds []string
	args  []any
}

// add cond 中的 %d 替换为参数占位序号
func (w *whereBuilder) add(cond string, v any) {
	w.args = append(w.args, v)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (r pgReader) SearchCards(ctx context.Context, f CardFilter) ([]*deck.Card, error) {
	w := &whereBuilder{}
	if f.Name != "" {
		w.add("name ILIKE '%%' || $%d || '%%'", f.Name)
	}
	if f.Color != "" {
		w.add("color ILIKE '%%' || $%d || '%%'", f.Color)
	}
	if f.Type != "" {
		w.add("lower(type) = lower($%d)", f.Type)
	}
	if f.Category != "" {
		w.add("category ILIKE '%%' || $%d || '%%'", f.Category)
	}
	if f.SetCode != "" {
		w.add("set_code = $%d", f.SetCode)
	}
	if f.TextContains != "" {
		w.add("text ILIKE '%%' || $%d || '%%'", f.TextContains)
	}
	if f.CostMin != nil {
		w.add("cost >= $%d", *f.CostMin)
	}
	if f.CostMax != nil {
		w.add("cost <= $%d", *f.CostMax)
	}
	if f.PowerMin != nil {
		w.add("power >= $%d", *f.PowerMin)
	}
	args := append(w.args, NormalizeLimit(f.Limit))
	rows, err := r.q.Query(ctx,
		`SELECT `+cardColumns+` FROM cards`+w.sql()+fmt.Sprintf(` ORDER BY id LIMIT $%d`, len(args)), args...)
	if err != nil {
		return nil, storeErr(err, "search cards")
	}
	defer rows.Close()
	cards, err := scanCards(rows)
	return cards, storeErr(err, "scan cards")
}

func (r pgReader) SearchLeaders(ctx context.Context, f LeaderFilter) ([]*deck.Leader, error) {
	w := &whereBuilder{}
	if f.Name != "" {
		w.add("name ILIKE '%%' || $%d || '%%'", f.Name)
	}
	if f.Color != "" {
		w.add("$%d = ANY(colors)", f.Color)
	}
	if f.Category != "" {
		w.add("category ILIKE '%%' || $%d || '%%'", f.Category)
	}
	if f.SetCode != "" {
		w.add("set_code = $%d", f.SetCode)
	}
	if f.PowerMin != nil {
		w.add("power >= $%d", *f.PowerMin)
	}
	args := append(w.args, NormalizeLimit(f.Limit))
	rows, err := r.q.Query(ctx,
		`SELECT `+leaderColumns+` FROM leaders`+w.sql()+fmt.Sprintf(` ORDER BY id LIMIT $%d`, len(args)), args...)
	if err != nil {
		return nil, storeErr(err, "search leaders")
	}
	defer rows.Close()
	leaders, err := scanLeaders(rows)
	return leaders, storeErr(err, "scan leaders")
}

func (r pgReader) LeaderByID(ctx context.Context, id string) (*deck.Leader, error) {
	rows, err := r.q.Query(ctx, `SELECT `+leaderColumns+` FROM leaders WHERE id = $1`, id)
	if err != nil {
		return nil, storeErr(err, "get leader")
	}
	defer rows.Close()
	leaders, err := scanLeaders(rows)
	if err != nil {
		return nil, storeErr(err, "scan leader")
	}
	if len(leaders) == 0 {
		return nil, errors.ErrNotFound
	}
	return leaders[0], nil
}

func (r pgReader) CardsByIDs(ctx context.Context, ids []string) (map[string]*deck.Card, error) {
	out := make(map[string]*deck.Card, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.q.Query(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, storeErr(err, "get cards")
	}
	defer rows.Close()
	cards, err := scanCards(rows)
	if err != nil {
		return nil, storeErr(err, "scan cards")
	}
	for _, c := range cards {
		out[c.ID] = c
	}
	return out, nil
}

func (r pgReader) Deck(ctx context.Context, id string) (*deck.Deck, error) {
	d := &deck.Deck{}
	var description, leaderID *string
	var dist []byte
	err := r.q.QueryRow(ctx,
		`SELECT id::text, name, description, leader_id, total_cards, avg_cost::float8, color_distribution, created_at, updated_at
		 FROM decks WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &description, &leaderID, &d.TotalCards, &d.AvgCost, &dist, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		return nil, storeErr(err, "get deck")
	}
	if description != nil {
		d.Description = *description
	}
	if len(dist) > 0 {
		_ = json.Unmarshal(dist, &d.ColorDistribution)
	}
	if leaderID != nil {
		d.LeaderID = *leaderID
		leader, err := r.LeaderByID(ctx, d.LeaderID)
		if err != nil && !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		d.Leader = leader
	}

	rows, err := r.q.Query(ctx,
		`SELECT dc.quantity, `+deckCardColumns+`
		 FROM deck_cards dc JOIN cards c ON c.id = dc.card_id WHERE dc.deck_id = $1`, id)
	if err != nil {
		return nil, storeErr(err, "get deck cards")
	}
	defer rows.Close()
	for rows.Next() {
		var q int
		c := &deck.Card{}
		if err := rows.Scan(append([]any{&q}, cardDest(c)...)...); err != nil {
			return nil, storeErr(err, "scan deck cards")
		}
		d.Cards = append(d.Cards, deck.DeckCard{Card: c, Quantity: q})
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "scan deck cards")
	}
	return d, nil
}

func cardDest(c *deck.Card) []any {
	return []any{&c.ID, &c.Name, &c.Type, &c.Color, &c.Cost, &c.Power, &c.Counter, &c.Attribute, &c.Text,
		&c.Trigger, &c.Rarity, &c.Category, &c.SetCode, &c.ImageURL}
}

func scanCards(rows pgx.Rows) ([]*deck.Card, error) {
	var out []*deck.Card
	for rows.Next() {
		c := &deck.Card{}
		if err := rows.Scan(cardDest(c)...); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanLeaders(rows pgx.Rows) ([]*deck.Leader, error) {
	var out []*deck.Leader
	for rows.Next() {
		l := &deck.Leader{}
		if err := rows.Scan(&l.ID, &l.Name, &l.Life, &l.Power, &l.Colors, &l.Attribute, &l.Text,
			&l.Category, &l.SetCode, &l.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
