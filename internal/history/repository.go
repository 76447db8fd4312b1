package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Page size bounds for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// Entry is one recorded command.
type Entry struct {
	ID          string    `json:"id"`
	Command     string    `json:"command"`
	Channel     string    `json:"channel,omitempty"`
	Position    *float64  `json:"position,omitempty"`
	Offset      bool      `json:"offset,omitempty"`
	Caller      string    `json:"caller"`
	Result      int       `json:"result"`
	ResultLabel string    `json:"result_label"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filter selects entries for List.
type Filter struct {
	Command string // optional: exact command name
	Channel string // optional: exact channel key
	Limit   int    // default 50, max 200
	Offset  int
}

// ListResult is one page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores and queries command history.
type Repository interface {
	Record(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository is the SQLite-backed Repository.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on db. The command_history
// migration must have been applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts entry, filling ID and CreatedAt when empty.
func (r *SQLiteRepository) Record(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = "cmd-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var position any
	if entry.Position != nil {
		position = *entry.Position
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_history
		 (id, command, channel, position, is_offset, caller, result, result_label, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Command, nullableString(entry.Channel), position, boolToInt(entry.Offset),
		entry.Caller, entry.Result, entry.ResultLabel, entry.DurationMS,
		entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting command history: %w", err)
	}
	return nil
}

// List returns entries matching filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Command != "" {
		conditions = append(conditions, "command = ?")
		args = append(args, filter.Command)
	}
	if filter.Channel != "" {
		conditions = append(conditions, "channel = ?")
		args = append(args, filter.Channel)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM command_history " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command history: %w", err)
	}

	query := `SELECT id, command, channel, position, is_offset, caller, result, result_label, duration_ms, created_at
		FROM command_history ` + where + ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?` //nolint:gosec // WHERE built from parameterised conditions
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying command history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var channel sql.NullString
		var position sql.NullFloat64
		var offset int
		var createdAt string

		if err := rows.Scan(&e.ID, &e.Command, &channel, &position, &offset,
			&e.Caller, &e.Result, &e.ResultLabel, &e.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command history: %w", err)
		}
		e.Channel = channel.String
		if position.Valid {
			p := position.Float64
			e.Position = &p
		}
		e.Offset = offset != 0
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing command history timestamp %q: %w", createdAt, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command history: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
