package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/reportline/reportbot/internal/model"
	_ "modernc.org/sqlite"
)

const timeFormat = "2006-01-02 15:04:05"

// SQLiteStore implements Store backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens a SQLite database at the given path and runs migrations.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename to ensure order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("execute migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// --- Users ---

func (s *SQLiteStore) UpsertUser(ctx context.Context, id int64, username, firstName string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, username, first_name, reg_date)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET username = excluded.username, first_name = excluded.first_name`,
		id, username, firstName, time.Now().UTC().Format(timeFormat))
	return err
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT user_id, username, first_name, reg_date, total_reports, is_banned, ban_message_id
		 FROM users WHERE user_id = ?`, id))
}

func (s *SQLiteStore) IncrementUserReports(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET total_reports = total_reports + 1 WHERE user_id = ?`, id)
	if err != nil {
		return err
	}
	return oneRowOr(result, ErrNotFound)
}

// BanUser sets the ban flag and records the delivered ban-notice message id.
// The update is conditional on the user not already being banned, so a
// double ban surfaces as ErrInvalidState instead of silently overwriting
// the recorded notice.
func (s *SQLiteStore) BanUser(ctx context.Context, id int64, banMessageID int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_banned = 1, ban_message_id = ? WHERE user_id = ? AND is_banned = 0`,
		banMessageID, id)
	if err != nil {
		return err
	}
	if err := oneRowOr(result, errNoRow); err != nil {
		return s.banStateError(ctx, id)
	}
	return nil
}

// UnbanUser clears the ban flag and the recorded ban-notice message id,
// conditional on the user currently being banned.
func (s *SQLiteStore) UnbanUser(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_banned = 0, ban_message_id = 0 WHERE user_id = ? AND is_banned = 1`, id)
	if err != nil {
		return err
	}
	if err := oneRowOr(result, errNoRow); err != nil {
		return s.banStateError(ctx, id)
	}
	return nil
}

// banStateError distinguishes "no such user" from "ban state unchanged"
// after a conditional ban/unban update touched zero rows.
func (s *SQLiteStore) banStateError(ctx context.Context, id int64) error {
	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}
	return ErrInvalidState
}

func (s *SQLiteStore) ListUsers(ctx context.Context, banned bool, limit, offset int) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, username, first_name, reg_date, total_reports, is_banned, ban_message_id
		 FROM users WHERE is_banned = ? ORDER BY reg_date DESC, user_id DESC LIMIT ? OFFSET ?`,
		boolToInt(banned), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := s.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) CountUsers(ctx context.Context, banned bool) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE is_banned = ?`, boolToInt(banned)).Scan(&n)
	return n, err
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func (s *SQLiteStore) scanUser(row scannable) (*model.User, error) {
	var u model.User
	var banned int
	var regDate string
	err := row.Scan(&u.ID, &u.Username, &u.FirstName, &regDate, &u.TotalReports, &banned, &u.BanMessageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Banned = banned != 0
	u.RegisteredAt, _ = time.Parse(timeFormat, regDate)
	return &u, nil
}

// --- Reports ---

// CreateReport inserts a pending report and fills in the assigned id and
// creation time on the passed struct.
func (s *SQLiteStore) CreateReport(ctx context.Context, report *model.Report) error {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	report.Status = model.StatusPending
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (sender_id, sender_username, reason, target_id, target_username, report_time, status, message_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.SenderID, report.SenderUsername, report.Reason,
		report.TargetID, report.TargetUsername,
		report.CreatedAt.UTC().Format(timeFormat), string(report.Status), report.MessageID)
	if err != nil {
		return err
	}
	report.ID, err = result.LastInsertId()
	return err
}

func (s *SQLiteStore) GetReport(ctx context.Context, id int64) (*model.Report, error) {
	return s.scanReport(s.db.QueryRowContext(ctx,
		`SELECT report_id, sender_id, sender_username, reason, target_id, target_username, report_time, status, message_id
		 FROM reports WHERE report_id = ?`, id))
}

// DecideReport moves a report from pending to the given terminal status.
// The transition is a single conditional update so that two concurrent
// decisions on the same report id resolve to exactly one winner; the
// loser observes ErrAlreadyDecided.
func (s *SQLiteStore) DecideReport(ctx context.Context, id int64, status model.ReportStatus) error {
	if !status.Terminal() {
		return fmt.Errorf("status %q is not a terminal decision", status)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ? WHERE report_id = ? AND status = ?`,
		string(status), id, string(model.StatusPending))
	if err != nil {
		return err
	}
	if err := oneRowOr(result, errNoRow); err != nil {
		if _, err := s.GetReport(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyDecided
	}
	return nil
}

func (s *SQLiteStore) ListPendingReports(ctx context.Context, limit, offset int) ([]*model.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT report_id, sender_id, sender_username, reason, target_id, target_username, report_time, status, message_id
		 FROM reports WHERE status = ? ORDER BY report_time DESC, report_id DESC LIMIT ? OFFSET ?`,
		string(model.StatusPending), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*model.Report
	for rows.Next() {
		r, err := s.scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *SQLiteStore) CountPendingReports(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reports WHERE status = ?`, string(model.StatusPending)).Scan(&n)
	return n, err
}

func (s *SQLiteStore) scanReport(row scannable) (*model.Report, error) {
	var r model.Report
	var status, reportTime string
	err := row.Scan(&r.ID, &r.SenderID, &r.SenderUsername, &r.Reason,
		&r.TargetID, &r.TargetUsername, &reportTime, &status, &r.MessageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Status = model.ReportStatus(status)
	r.CreatedAt, _ = time.Parse(timeFormat, reportTime)
	return &r, nil
}

// --- Helpers ---

var errNoRow = errors.New("no row updated")

func oneRowOr(result sql.Result, zeroErr error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return zeroErr
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
