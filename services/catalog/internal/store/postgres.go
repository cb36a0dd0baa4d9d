package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCatalogStore is the production Postgres-backed implementation.
type PostgresCatalogStore struct {
	db *pgxpool.Pool
}

func NewPostgresCatalogStore(db *pgxpool.Pool) *PostgresCatalogStore {
	return &PostgresCatalogStore{db: db}
}

const dropGamesSQL = `DROP TABLE IF EXISTS games`

const createGamesSQL = `
CREATE TABLE games (
    id                       SERIAL PRIMARY KEY,
    steam_id                 BIGINT NOT NULL UNIQUE,
    name                     TEXT NOT NULL,
    release_date             TEXT NOT NULL DEFAULT '',
    estimated_owners         TEXT NOT NULL DEFAULT '',
    peak_ccu                 INTEGER NOT NULL DEFAULT 0,
    required_age             INTEGER NOT NULL DEFAULT 0,
    price                    NUMERIC(10, 2) NOT NULL DEFAULT 0,
    dlc_count                INTEGER NOT NULL DEFAULT 0,
    description              TEXT NOT NULL DEFAULT '',
    short_description        TEXT NOT NULL DEFAULT '',
    languages                TEXT NOT NULL DEFAULT '',
    header_image             TEXT NOT NULL DEFAULT '',
    website                  TEXT NOT NULL DEFAULT '',
    support_windows          BOOLEAN NOT NULL DEFAULT FALSE,
    support_mac              BOOLEAN NOT NULL DEFAULT FALSE,
    support_linux            BOOLEAN NOT NULL DEFAULT FALSE,
    user_score               INTEGER NOT NULL DEFAULT 0,
    positive                 INTEGER NOT NULL DEFAULT 0,
    negative                 INTEGER NOT NULL DEFAULT 0,
    score_rank               TEXT NOT NULL DEFAULT '',
    achievements             INTEGER NOT NULL DEFAULT 0,
    recommendations          INTEGER NOT NULL DEFAULT 0,
    notes                    TEXT NOT NULL DEFAULT '',
    average_playtime_forever INTEGER NOT NULL DEFAULT 0,
    average_playtime_2weeks  INTEGER NOT NULL DEFAULT 0,
    median_playtime_forever  INTEGER NOT NULL DEFAULT 0,
    median_playtime_2weeks   INTEGER NOT NULL DEFAULT 0,
    developers               JSONB NOT NULL DEFAULT '[]'::jsonb,
    publishers               JSONB NOT NULL DEFAULT '[]'::jsonb,
    categories               JSONB NOT NULL DEFAULT '[]'::jsonb,
    genres                   JSONB NOT NULL DEFAULT '[]'::jsonb,
    tags                     JSONB NOT NULL DEFAULT '[]'::jsonb
)`

// gameColumns is the insert/select column order shared by gameArgs and
// scanGame. price goes through text so Price never depends on a numeric codec.
var gameColumns = []string{
	"steam_id", "name", "release_date", "estimated_owners", "peak_ccu", "required_age",
	"price", "dlc_count", "description", "short_description", "languages", "header_image",
	"website", "support_windows", "support_mac", "support_linux", "user_score", "positive",
	"negative", "score_rank", "achievements", "recommendations", "notes",
	"average_playtime_forever", "average_playtime_2weeks", "median_playtime_forever",
	"median_playtime_2weeks", "developers", "publishers", "categories", "genres", "tags",
}

const priceColumn = 6

var selectGameSQL = func() string {
	cols := make([]string, len(gameColumns))
	copy(cols, gameColumns)
	cols[priceColumn] = "price::text"
	return "SELECT " + strings.Join(cols, ", ") + " FROM games"
}()

// ── Schema ─────────────────────────────────────────────────────────────────

// ResetSchema drops the games table and recreates it empty. Destructive; the
// caller must have exclusive access to the catalog.
func (s *PostgresCatalogStore) ResetSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("db begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, dropGamesSQL); err != nil {
		return fmt.Errorf("drop games: %w", err)
	}
	if _, err := tx.Exec(ctx, createGamesSQL); err != nil {
		return fmt.Errorf("create games: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("db commit: %w", err)
	}
	return nil
}

// ── Writes ─────────────────────────────────────────────────────────────────

// maxRowsPerStatement keeps one INSERT under the 65535 bind parameter limit.
var maxRowsPerStatement = 65535 / len(gameColumns)

// InsertBatch writes games inside one transaction using multi-row INSERTs.
// Rows whose steam_id already exists are skipped, so re-running a batch is a
// no-op.
func (s *PostgresCatalogStore) InsertBatch(ctx context.Context, games []Game) (int64, error) {
	if len(games) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("db begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var inserted int64
	for start := 0; start < len(games); start += maxRowsPerStatement {
		end := min(start+maxRowsPerStatement, len(games))
		sql, args, err := buildInsert(games[start:end])
		if err != nil {
			return 0, err
		}
		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return 0, fmt.Errorf("insert games: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("db commit: %w", err)
	}
	return inserted, nil
}

func buildInsert(games []Game) (string, []any, error) {
	var b strings.Builder
	b.WriteString("INSERT INTO games (")
	b.WriteString(strings.Join(gameColumns, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(games)*len(gameColumns))
	for i, g := range games {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range gameColumns {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(len(args) + c + 1))
			if c == priceColumn {
				b.WriteString("::text::numeric")
			}
		}
		b.WriteByte(')')

		row, err := gameArgs(g)
		if err != nil {
			return "", nil, fmt.Errorf("steam_id %d: %w", g.AppID, err)
		}
		args = append(args, row...)
	}
	b.WriteString(" ON CONFLICT (steam_id) DO NOTHING")
	return b.String(), args, nil
}

func gameArgs(g Game) ([]any, error) {
	g = g.Normalize()
	lists := make([][]byte, 0, 5)
	for _, l := range [][]string{g.Developers, g.Publishers, g.Categories, g.Genres, g.Tags} {
		b, err := json.Marshal(l)
		if err != nil {
			return nil, err
		}
		lists = append(lists, b)
	}
	return []any{
		g.AppID, g.Name, g.ReleaseDate, g.EstimatedOwners, g.PeakCCU, g.RequiredAge,
		g.Price.String(), g.DLCCount, g.Description, g.ShortDescription, g.Languages, g.HeaderImage,
		g.Website, g.Windows, g.Mac, g.Linux, g.UserScore, g.Positive,
		g.Negative, g.ScoreRank, g.Achievements, g.Recommendations, g.Notes,
		g.AveragePlaytimeForever, g.AveragePlaytime2Weeks, g.MedianPlaytimeForever,
		g.MedianPlaytime2Weeks, lists[0], lists[1], lists[2], lists[3], lists[4],
	}, nil
}

// ── Reads ──────────────────────────────────────────────────────────────────

func (s *PostgresCatalogStore) GetByID(ctx context.Context, appID int64) (Game, error) {
	rows, err := s.db.Query(ctx, selectGameSQL+` WHERE steam_id = $1`, appID)
	if err != nil {
		return Game{}, fmt.Errorf("db query: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Game{}, fmt.Errorf("db query: %w", err)
		}
		return Game{}, ErrNotFound
	}
	return scanGame(rows)
}

func (s *PostgresCatalogStore) GetManyByIDs(ctx context.Context, appIDs []int64) (map[int64]LocalAttrs, error) {
	out := make(map[int64]LocalAttrs, len(appIDs))
	if len(appIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT steam_id, tags, description, price::text FROM games WHERE steam_id = ANY($1)`, appIDs)
	if err != nil {
		return nil, fmt.Errorf("db query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id       int64
			tagsJSON []byte
			price    string
			attrs    LocalAttrs
		)
		if err := rows.Scan(&id, &tagsJSON, &attrs.Description, &price); err != nil {
			return nil, fmt.Errorf("db scan: %w", err)
		}
		if attrs.Tags, err = decodeList(tagsJSON); err != nil {
			return nil, fmt.Errorf("steam_id %d tags: %w", id, err)
		}
		if attrs.Price, err = ParsePrice(price); err != nil {
			return nil, fmt.Errorf("steam_id %d: %w", id, err)
		}
		out[id] = attrs
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db rows: %w", err)
	}
	return out, nil
}

func (s *PostgresCatalogStore) SampleRandom(ctx context.Context, limit int) ([]Game, error) {
	if limit <= 0 {
		return []Game{}, nil
	}
	rows, err := s.db.Query(ctx, selectGameSQL+` ORDER BY random() LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("db query: %w", err)
	}
	defer rows.Close()

	out := make([]Game, 0, limit)
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db rows: %w", err)
	}
	return out, nil
}

// ── helpers ────────────────────────────────────────────────────────────────

func scanGame(rows pgx.Rows) (Game, error) {
	var (
		g     Game
		price string
		lists [5][]byte
	)
	err := rows.Scan(
		&g.AppID, &g.Name, &g.ReleaseDate, &g.EstimatedOwners, &g.PeakCCU, &g.RequiredAge,
		&price, &g.DLCCount, &g.Description, &g.ShortDescription, &g.Languages, &g.HeaderImage,
		&g.Website, &g.Windows, &g.Mac, &g.Linux, &g.UserScore, &g.Positive,
		&g.Negative, &g.ScoreRank, &g.Achievements, &g.Recommendations, &g.Notes,
		&g.AveragePlaytimeForever, &g.AveragePlaytime2Weeks, &g.MedianPlaytimeForever,
		&g.MedianPlaytime2Weeks, &lists[0], &lists[1], &lists[2], &lists[3], &lists[4],
	)
	if err != nil {
		return Game{}, fmt.Errorf("db scan: %w", err)
	}
	if g.Price, err = ParsePrice(price); err != nil {
		return Game{}, fmt.Errorf("steam_id %d: %w", g.AppID, err)
	}
	targets := []*[]string{&g.Developers, &g.Publishers, &g.Categories, &g.Genres, &g.Tags}
	for i, raw := range lists {
		if *targets[i], err = decodeList(raw); err != nil {
			return Game{}, fmt.Errorf("steam_id %d %s: %w", g.AppID, gameColumns[27+i], err)
		}
	}
	return g, nil
}

func decodeList(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}
