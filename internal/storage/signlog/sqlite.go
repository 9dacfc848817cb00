package signlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ohmynofan/gamemale-checkin-bot/internal/domain/model"
)

const dateLayout = "2006-01-02"

// forumZone is where the forum's daily reset happens (midnight, UTC+8).
var forumZone = time.FixedZone("CST", 8*60*60)

// Store keeps one row per user, forum day and action. A later run on the same
// day overwrites the earlier outcome.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) init() error {
	createStmt := `CREATE TABLE IF NOT EXISTS sign_logs (
        username TEXT NOT NULL,
        signed_date TEXT NOT NULL,
        action TEXT NOT NULL,
        status TEXT NOT NULL,
        PRIMARY KEY(username, signed_date, action)
    )`
	if _, err := s.db.Exec(createStmt); err != nil {
		return err
	}
	return s.ensureColumns()
}

// ensureColumns upgrades databases written by older builds in place.
func (s *Store) ensureColumns() error {
	columns := map[string]bool{}
	rows, err := s.db.Query(`PRAGMA table_info(sign_logs)`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		columns[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	alterStatements := []string{}
	addColumn := func(name, definition string) {
		if !columns[name] {
			alterStatements = append(alterStatements, definition)
		}
	}

	addColumn("detail", `ALTER TABLE sign_logs ADD COLUMN detail TEXT`)
	addColumn("site", `ALTER TABLE sign_logs ADD COLUMN site TEXT`)
	addColumn("updated_at", `ALTER TABLE sign_logs ADD COLUMN updated_at TEXT`)

	for _, stmt := range alterStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record upserts the outcome of one action for username on the forum day
// containing day.
func (s *Store) Record(ctx context.Context, username string, day time.Time, result model.ActionResult) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO sign_logs(username, signed_date, action, status, detail, site, updated_at)
    VALUES(?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT(username, signed_date, action) DO UPDATE SET
        status = excluded.status,
        detail = excluded.detail,
        site = excluded.site,
        updated_at = excluded.updated_at`,
		normalizeUsername(username), forumDay(day), string(result.Action), string(result.Status),
		result.Detail, result.Site, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", result.Action, err)
	}
	return nil
}

// DailyStatus returns the recorded outcome per action for username on the
// forum day containing day. Actions not yet recorded are absent.
func (s *Store) DailyStatus(ctx context.Context, username string, day time.Time) (map[model.Action]model.ActionResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT action, status, detail, site FROM sign_logs WHERE username = ? AND signed_date = ?`,
		normalizeUsername(username), forumDay(day))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[model.Action]model.ActionResult{}
	for rows.Next() {
		var action, status string
		var detail, site sql.NullString
		if err := rows.Scan(&action, &status, &detail, &site); err != nil {
			return nil, err
		}
		out[model.Action(action)] = model.ActionResult{
			Site:   site.String,
			Action: model.Action(action),
			Status: model.Status(status),
			Detail: detail.String,
		}
	}
	return out, rows.Err()
}

// AllDone reports whether every given action is recorded as done for the day.
func (s *Store) AllDone(ctx context.Context, username string, day time.Time, actions ...model.Action) (bool, error) {
	status, err := s.DailyStatus(ctx, username, day)
	if err != nil {
		return false, err
	}
	for _, action := range actions {
		if !status[action].Status.Done() {
			return false, nil
		}
	}
	return len(actions) > 0, nil
}

func forumDay(t time.Time) string {
	return t.In(forumZone).Format(dateLayout)
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
