package stats

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

// Store persists per-name player statistics and match summaries in SQLite.
type Store struct {
	db *sql.DB
}

type PlayerStats struct {
	Name      string
	Kills     int
	Deaths    int
	Shots     int
	Beams     int
	PowerUps  int
	BestScore int
	LastSeen  time.Time
}

type PlayerScore struct {
	Name   string `msgpack:"name"`
	Score  int    `msgpack:"score"`
	Kills  int    `msgpack:"kills"`
	Deaths int    `msgpack:"deaths"`
}

// MatchSummary is stored as a msgpack blob; ID is the row id.
type MatchSummary struct {
	ID        int64         `msgpack:"-"`
	Mode      string        `msgpack:"mode"`
	StartedAt time.Time     `msgpack:"started_at"`
	EndedAt   time.Time     `msgpack:"ended_at"`
	Players   []PlayerScore `msgpack:"players"`
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create stats directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		name TEXT PRIMARY KEY,
		kills INTEGER NOT NULL DEFAULT 0,
		deaths INTEGER NOT NULL DEFAULT 0,
		shots INTEGER NOT NULL DEFAULT 0,
		beams INTEGER NOT NULL DEFAULT 0,
		powerups INTEGER NOT NULL DEFAULT 0,
		best_score INTEGER NOT NULL DEFAULT 0,
		last_seen INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL,
		summary BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_players_kills ON players(kills DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate stats database: %w", err)
	}
	return nil
}

// bump increments one counter column for name, creating the row if needed.
func (s *Store) bump(name, column string, score int) error {
	switch column {
	case "kills", "deaths", "shots", "beams", "powerups":
	default:
		return fmt.Errorf("unknown stats column %q", column)
	}

	query := fmt.Sprintf(`
	INSERT INTO players (name, %[1]s, best_score, last_seen) VALUES (?, 1, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		%[1]s = %[1]s + 1,
		best_score = MAX(best_score, excluded.best_score),
		last_seen = excluded.last_seen`, column)

	if _, err := s.db.Exec(query, name, score, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to record %s for %s: %w", column, name, err)
	}
	return nil
}

func (s *Store) RecordKill(name string, score int) error {
	return s.bump(name, "kills", score)
}

func (s *Store) RecordDeath(name string) error {
	return s.bump(name, "deaths", 0)
}

func (s *Store) RecordShot(name string) error {
	return s.bump(name, "shots", 0)
}

func (s *Store) RecordBeam(name string) error {
	return s.bump(name, "beams", 0)
}

func (s *Store) RecordPowerUp(name string) error {
	return s.bump(name, "powerups", 0)
}

// Leaderboard returns players ordered by kills, then best score, then name.
func (s *Store) Leaderboard(limit int) ([]PlayerStats, error) {
	rows, err := s.db.Query(`
	SELECT name, kills, deaths, shots, beams, powerups, best_score, last_seen
	FROM players
	ORDER BY kills DESC, best_score DESC, name ASC
	LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []PlayerStats
	for rows.Next() {
		var p PlayerStats
		var lastSeen int64
		if err := rows.Scan(&p.Name, &p.Kills, &p.Deaths, &p.Shots, &p.Beams, &p.PowerUps, &p.BestScore, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		p.LastSeen = time.Unix(lastSeen, 0)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Player(name string) (PlayerStats, bool, error) {
	row := s.db.QueryRow(`
	SELECT name, kills, deaths, shots, beams, powerups, best_score, last_seen
	FROM players WHERE name = ?`, name)

	var p PlayerStats
	var lastSeen int64
	err := row.Scan(&p.Name, &p.Kills, &p.Deaths, &p.Shots, &p.Beams, &p.PowerUps, &p.BestScore, &lastSeen)
	if err == sql.ErrNoRows {
		return PlayerStats{}, false, nil
	}
	if err != nil {
		return PlayerStats{}, false, fmt.Errorf("failed to query player %s: %w", name, err)
	}
	p.LastSeen = time.Unix(lastSeen, 0)
	return p, true, nil
}

func (s *Store) SaveMatch(m MatchSummary) (int64, error) {
	blob, err := msgpack.Marshal(m)
	if err != nil {
		return 0, fmt.Errorf("failed to encode match summary: %w", err)
	}

	res, err := s.db.Exec(
		"INSERT INTO matches (started_at, ended_at, summary) VALUES (?, ?, ?)",
		m.StartedAt.Unix(), m.EndedAt.Unix(), blob,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save match: %w", err)
	}
	return res.LastInsertId()
}

// Matches returns the most recent matches first.
func (s *Store) Matches(limit int) ([]MatchSummary, error) {
	rows, err := s.db.Query("SELECT id, summary FROM matches ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var out []MatchSummary
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		var m MatchSummary
		if err := msgpack.Unmarshal(blob, &m); err != nil {
			return nil, fmt.Errorf("failed to decode match %d: %w", id, err)
		}
		m.ID = id
		out = append(out, m)
	}
	return out, rows.Err()
}
