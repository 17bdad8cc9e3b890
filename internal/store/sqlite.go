// 包 store 提供本地 SQLite 存储（sqlx + modernc.org/sqlite）：
// - 玩家/公会/文章快照（migrate 命令的迁移目标，整表替换）
// - 评分历史（每次统计刷新追加一行，按 run_id 归组）
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"bamaco-content/internal/model"
)

// SQLite 封装 *sqlx.DB，基于 modernc.org/sqlite（纯 Go 实现）。
type SQLite struct {
	db *sqlx.DB
}

// OpenSQLite 打开 SQLite 数据库并执行自动迁移。
func OpenSQLite(path string) (*SQLite, error) {
	// modernc sqlite 的 DSN 可直接使用文件路径，或以 'file:...' 前缀表示
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// migrate 执行建表语句，保持幂等。
func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS players (
            id TEXT PRIMARY KEY,
            name TEXT,
            ign TEXT,
            friend_code TEXT,
            rating INTEGER,
            role TEXT,
            rank TEXT,
            guild_id TEXT,
            avatar TEXT,
            article_count INTEGER,
            synced_at TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS guilds (
            id TEXT PRIMARY KEY,
            name TEXT,
            motto TEXT,
            member_count INTEGER,
            level INTEGER,
            synced_at TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS articles (
            id TEXT PRIMARY KEY,
            title TEXT,
            author TEXT,
            author_id TEXT,
            category TEXT,
            date TEXT,
            excerpt TEXT,
            synced_at TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS rating_history (
            run_id TEXT,
            friend_code TEXT,
            player_id TEXT,
            rating INTEGER,
            recorded_at TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_rating_history_player ON rating_history(player_id, recorded_at);`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

type playerRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	IGN          string    `db:"ign"`
	FriendCode   string    `db:"friend_code"`
	Rating       int       `db:"rating"`
	Role         string    `db:"role"`
	Rank         string    `db:"rank"`
	GuildID      string    `db:"guild_id"`
	Avatar       string    `db:"avatar"`
	ArticleCount int       `db:"article_count"`
	SyncedAt     time.Time `db:"synced_at"`
}

type guildRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Motto       string    `db:"motto"`
	MemberCount int       `db:"member_count"`
	Level       int       `db:"level"`
	SyncedAt    time.Time `db:"synced_at"`
}

type articleRow struct {
	ID       string    `db:"id"`
	Title    string    `db:"title"`
	Author   string    `db:"author"`
	AuthorID string    `db:"author_id"`
	Category string    `db:"category"`
	Date     string    `db:"date"`
	Excerpt  string    `db:"excerpt"`
	SyncedAt time.Time `db:"synced_at"`
}

// RatingPoint 为评分历史中的一行。
type RatingPoint struct {
	RunID      string    `db:"run_id" json:"runId"`
	FriendCode string    `db:"friend_code" json:"friendCode"`
	PlayerID   string    `db:"player_id" json:"playerId"`
	Rating     int       `db:"rating" json:"rating"`
	RecordedAt time.Time `db:"recorded_at" json:"recordedAt"`
}

// Stats 为快照统计。
type Stats struct {
	Players   int
	Guilds    int
	Articles  int
	History   int
	UpdatedAt time.Time
}

// Reset 清空快照表（不删除数据库文件与评分历史）。
func (s *SQLite) Reset(ctx context.Context) error {
	for _, table := range []string{"players", "guilds", "articles"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

// SaveSnapshot 在一个事务内以聚合结果整体替换快照表；重复 id 以后写入者为准。
func (s *SQLite) SaveSnapshot(ctx context.Context, e model.Export) error {
	now := time.Now()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"players", "guilds", "articles"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	for _, p := range e.Players {
		row := playerRow{
			ID: p.ID, Name: p.Name, IGN: p.IGN, FriendCode: p.FriendCode, Rating: p.Rating,
			Role: p.Role, Rank: p.Rank, GuildID: p.GuildID, Avatar: p.Avatar,
			ArticleCount: len(p.Articles), SyncedAt: now,
		}
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO players(id, name, ign, friend_code, rating, role, rank, guild_id, avatar, article_count, synced_at)
            VALUES(:id, :name, :ign, :friend_code, :rating, :role, :rank, :guild_id, :avatar, :article_count, :synced_at)
            ON CONFLICT(id) DO UPDATE SET name=excluded.name, ign=excluded.ign, friend_code=excluded.friend_code, rating=excluded.rating,
            role=excluded.role, rank=excluded.rank, guild_id=excluded.guild_id, avatar=excluded.avatar, article_count=excluded.article_count`, row); err != nil {
			return fmt.Errorf("insert player %s: %w", p.ID, err)
		}
	}
	for _, g := range e.Guilds {
		row := guildRow{ID: g.ID, Name: g.Name, Motto: g.Motto, MemberCount: g.MemberCount, Level: g.Level, SyncedAt: now}
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO guilds(id, name, motto, member_count, level, synced_at)
            VALUES(:id, :name, :motto, :member_count, :level, :synced_at)
            ON CONFLICT(id) DO UPDATE SET name=excluded.name, motto=excluded.motto, member_count=excluded.member_count, level=excluded.level`, row); err != nil {
			return fmt.Errorf("insert guild %s: %w", g.ID, err)
		}
	}
	for _, a := range e.Articles {
		row := articleRow{ID: a.ID, Title: a.Title, Author: a.Author, AuthorID: a.AuthorID, Category: a.Category, Date: a.Date, Excerpt: a.Excerpt, SyncedAt: now}
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO articles(id, title, author, author_id, category, date, excerpt, synced_at)
            VALUES(:id, :title, :author, :author_id, :category, :date, :excerpt, :synced_at)
            ON CONFLICT(id) DO UPDATE SET title=excluded.title, author=excluded.author, author_id=excluded.author_id,
            category=excluded.category, date=excluded.date, excerpt=excluded.excerpt`, row); err != nil {
			return fmt.Errorf("insert article %s: %w", a.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// ListPlayers 返回快照中的玩家，按评分倒序。
func (s *SQLite) ListPlayers(ctx context.Context) ([]model.Player, error) {
	var rows []playerRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, name, ign, friend_code, rating, role, rank, guild_id, avatar, article_count, synced_at
        FROM players ORDER BY rating DESC, id`); err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	out := make([]model.Player, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Player{
			ID: r.ID, Name: r.Name, IGN: r.IGN, FriendCode: r.FriendCode, Rating: r.Rating,
			Role: r.Role, Rank: r.Rank, GuildID: r.GuildID, Avatar: r.Avatar,
		})
	}
	return out, nil
}

// RecordRatings 追加一批评分记录（同一 run_id）。
func (s *SQLite) RecordRatings(ctx context.Context, points []RatingPoint) error {
	if len(points) == 0 {
		return nil
	}
	for i := range points {
		if points[i].RecordedAt.IsZero() {
			points[i].RecordedAt = time.Now()
		}
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO rating_history(run_id, friend_code, player_id, rating, recorded_at)
        VALUES(:run_id, :friend_code, :player_id, :rating, :recorded_at)`, points)
	if err != nil {
		return fmt.Errorf("insert rating history: %w", err)
	}
	return nil
}

// RatingHistory 返回某玩家的评分历史，按记录时间正序。
func (s *SQLite) RatingHistory(ctx context.Context, playerID string) ([]RatingPoint, error) {
	var out []RatingPoint
	if err := s.db.SelectContext(ctx, &out, `SELECT run_id, friend_code, player_id, rating, recorded_at
        FROM rating_history WHERE player_id = ? ORDER BY recorded_at, rowid`, playerID); err != nil {
		return nil, fmt.Errorf("query rating history %s: %w", playerID, err)
	}
	return out, nil
}

// Stats 统计各表行数。
func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	counts := []struct {
		table string
		dst   *int
	}{
		{"players", &st.Players},
		{"guilds", &st.Guilds},
		{"articles", &st.Articles},
		{"rating_history", &st.History},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dst, `SELECT COUNT(1) FROM `+c.table); err != nil {
			return st, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	st.UpdatedAt = time.Now()
	return st, nil
}
