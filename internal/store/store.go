package store

import (
	"context"
	"errors"

	"github.com/reportline/reportbot/internal/model"
)

// Sentinel errors returned by Store implementations. Callers branch on
// these with errors.Is; anything else is a persistence failure.
var (
	// ErrNotFound is returned when the referenced user or report has no row.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyDecided is returned when a report is decided a second time.
	ErrAlreadyDecided = errors.New("report already decided")
	// ErrInvalidState is returned when a ban or unban does not apply to the
	// user's current ban state.
	ErrInvalidState = errors.New("user ban state unchanged")
)

// Store defines the persistence interface for the report bot.
type Store interface {
	// Users
	UpsertUser(ctx context.Context, id int64, username, firstName string) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	IncrementUserReports(ctx context.Context, id int64) error
	BanUser(ctx context.Context, id int64, banMessageID int64) error
	UnbanUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context, banned bool, limit, offset int) ([]*model.User, error)
	CountUsers(ctx context.Context, banned bool) (int, error)

	// Reports
	CreateReport(ctx context.Context, report *model.Report) error
	GetReport(ctx context.Context, id int64) (*model.Report, error)
	DecideReport(ctx context.Context, id int64, status model.ReportStatus) error
	ListPendingReports(ctx context.Context, limit, offset int) ([]*model.Report, error)
	CountPendingReports(ctx context.Context) (int, error)
}
