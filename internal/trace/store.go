package trace

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const maxSessions = 100

// Store persists trace data to PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to a PostgreSQL trace database at connStr.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("trace open: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace ping: %w", err)
	}
	if err = migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return err
	}

	var current int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_version`)
	if err = row.Scan(&current); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for i := current + 1; i < len(entries); i++ {
		data, readErr := migrationFS.ReadFile("migrations/" + entries[i].Name())
		if readErr != nil {
			return fmt.Errorf("read migration %d: %w", i, readErr)
		}
		if _, execErr := db.Exec(string(data)); execErr != nil {
			return fmt.Errorf("migration %d: %w", i, execErr)
		}
		if _, execErr := db.Exec(`INSERT INTO schema_version (version) VALUES ($1)`, i); execErr != nil {
			return fmt.Errorf("migration %d record: %w", i, execErr)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session and prunes old ones.
func (s *Store) CreateSession(id, metadata string) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, metadata, started_at) VALUES ($1, $2, $3)`,
		id, metadata, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`DELETE FROM sessions WHERE id NOT IN (SELECT id FROM sessions ORDER BY started_at DESC LIMIT $1)`,
		maxSessions,
	)
	return err
}

// EndSession sets the ended_at timestamp.
func (s *Store) EndSession(id string) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET ended_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	return err
}

// CreatePlay inserts a new play request.
func (s *Store) CreatePlay(id, sessionID, url, voice string) error {
	_, err := s.db.Exec(
		`INSERT INTO plays (id, session_id, url, voice, started_at, status) VALUES ($1, $2, $3, $4, $5, 'playing')`,
		id, sessionID, url, voice, time.Now().UTC(),
	)
	return err
}

// UpdatePlay sets the play's final fields.
func (s *Store) UpdatePlay(id string, durationMs float64, status string) error {
	_, err := s.db.Exec(
		`UPDATE plays SET duration_ms = $1, status = $2 WHERE id = $3`,
		durationMs, status, id,
	)
	return err
}

// CreateSentenceSpan inserts a sentence-stage timing row.
func (s *Store) CreateSentenceSpan(sp SentenceSpan) error {
	_, err := s.db.Exec(
		`INSERT INTO sentence_spans (id, play_id, paragraph_index, sentence_index, stage, started_at, duration_ms, status, error_msg)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sp.ID, sp.PlayID, sp.ParagraphIndex, sp.SentenceIndex, sp.Stage, sp.StartedAt.UTC(),
		sp.DurationMs, sp.Status, sp.Error,
	)
	return err
}

// ListSessions returns sessions ordered newest first, with play counts.
func (s *Store) ListSessions(limit, offset int) ([]Session, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(`
		SELECT s.id, s.metadata, s.started_at, s.ended_at, COUNT(p.id) as play_count
		FROM sessions s
		LEFT JOIN plays p ON p.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var endedAt sql.NullTime
		if err = rows.Scan(&sess.ID, &sess.Metadata, &sess.StartedAt, &endedAt, &sess.PlayCount); err != nil {
			return nil, 0, err
		}
		if endedAt.Valid {
			sess.EndedAt = &endedAt.Time
		}
		sessions = append(sessions, sess)
	}
	return sessions, total, rows.Err()
}

// GetSession returns a single session with its plays.
func (s *Store) GetSession(id string) (*Session, []Play, error) {
	var sess Session
	var endedAt sql.NullTime
	err := s.db.QueryRow(
		`SELECT id, metadata, started_at, ended_at FROM sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.Metadata, &sess.StartedAt, &endedAt)
	if err != nil {
		return nil, nil, err
	}
	if endedAt.Valid {
		sess.EndedAt = &endedAt.Time
	}

	rows, err := s.db.Query(`
		SELECT p.id, p.session_id, p.started_at, p.duration_ms, p.url, p.voice, p.status,
		       COUNT(sp.id) as span_count
		FROM plays p
		LEFT JOIN sentence_spans sp ON sp.play_id = p.id
		WHERE p.session_id = $1
		GROUP BY p.id
		ORDER BY p.started_at ASC
	`, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var plays []Play
	for rows.Next() {
		var p Play
		if err = rows.Scan(&p.ID, &p.SessionID, &p.StartedAt, &p.DurationMs, &p.URL, &p.Voice, &p.Status, &p.SpanCount); err != nil {
			return nil, nil, err
		}
		plays = append(plays, p)
	}
	return &sess, plays, rows.Err()
}

// GetPlay returns a single play with its sentence spans.
func (s *Store) GetPlay(sessionID, playID string) (*Play, []SentenceSpan, error) {
	var p Play
	err := s.db.QueryRow(
		`SELECT id, session_id, started_at, duration_ms, url, voice, status FROM plays WHERE id = $1 AND session_id = $2`,
		playID, sessionID,
	).Scan(&p.ID, &p.SessionID, &p.StartedAt, &p.DurationMs, &p.URL, &p.Voice, &p.Status)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, play_id, paragraph_index, sentence_index, stage, started_at, duration_ms, status, error_msg FROM sentence_spans WHERE play_id = $1 ORDER BY started_at ASC`,
		playID,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var spans []SentenceSpan
	for rows.Next() {
		var sp SentenceSpan
		if err = rows.Scan(&sp.ID, &sp.PlayID, &sp.ParagraphIndex, &sp.SentenceIndex, &sp.Stage, &sp.StartedAt, &sp.DurationMs, &sp.Status, &sp.Error); err != nil {
			return nil, nil, err
		}
		spans = append(spans, sp)
	}
	return &p, spans, rows.Err()
}
