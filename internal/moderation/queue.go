// Package moderation implements the moderator-only surfaces: paginated
// review listings and the ban lifecycle. Every operation checks the
// caller's identity before touching the store.
package moderation

import (
	"context"
	"errors"

	"github.com/reportline/reportbot/internal/model"
	"github.com/reportline/reportbot/internal/store"
)

// ErrForbidden is returned when a caller without the moderator identity
// invokes a moderator-only operation. It short-circuits before any data
// access.
var ErrForbidden = errors.New("moderator identity required")

// Kind selects a queue listing.
type Kind string

const (
	KindReports Kind = "reports"
	KindUsers   Kind = "users"
	KindBanlist Kind = "banlist"
)

// PageSize returns the fixed page size for the listing kind.
func (k Kind) PageSize() int {
	if k == KindReports {
		return 5
	}
	return 10
}

// Page is one page of a listing. Reports is populated for KindReports;
// Users for the other kinds. Page is clamped into the valid range, so a
// stale navigation button can never address past the end.
type Page struct {
	Kind       Kind
	Reports    []*model.Report
	Users      []*model.User
	Page       int
	TotalItems int
	TotalPages int
	HasPrev    bool
	HasNext    bool
}

// Queue presents the moderator's paginated views over reports and users.
type Queue struct {
	store       store.Store
	moderatorID int64
}

func NewQueue(s store.Store, moderatorID int64) *Queue {
	return &Queue{store: s, moderatorID: moderatorID}
}

func (q *Queue) authorize(callerID int64) error {
	if q.moderatorID == 0 || callerID != q.moderatorID {
		return ErrForbidden
	}
	return nil
}

// ListPage returns one page of the requested listing. An empty listing
// still has one (empty) page, so "1/1" always renders.
func (q *Queue) ListPage(ctx context.Context, callerID int64, kind Kind, page int) (*Page, error) {
	if err := q.authorize(callerID); err != nil {
		return nil, err
	}

	size := kind.PageSize()
	var total int
	var err error
	switch kind {
	case KindReports:
		total, err = q.store.CountPendingReports(ctx)
	case KindUsers:
		total, err = q.store.CountUsers(ctx, false)
	case KindBanlist:
		total, err = q.store.CountUsers(ctx, true)
	default:
		return nil, errors.New("unknown listing kind: " + string(kind))
	}
	if err != nil {
		return nil, err
	}

	totalPages := (total + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 0 {
		page = 0
	}
	if page > totalPages-1 {
		page = totalPages - 1
	}

	p := &Page{
		Kind:       kind,
		Page:       page,
		TotalItems: total,
		TotalPages: totalPages,
		HasPrev:    page > 0,
		HasNext:    page < totalPages-1,
	}
	switch kind {
	case KindReports:
		p.Reports, err = q.store.ListPendingReports(ctx, size, page*size)
	case KindUsers:
		p.Users, err = q.store.ListUsers(ctx, false, size, page*size)
	case KindBanlist:
		p.Users, err = q.store.ListUsers(ctx, true, size, page*size)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ReportDetail returns a single report for moderator review.
func (q *Queue) ReportDetail(ctx context.Context, callerID, reportID int64) (*model.Report, error) {
	if err := q.authorize(callerID); err != nil {
		return nil, err
	}
	return q.store.GetReport(ctx, reportID)
}

// UserDetail returns a single user profile for moderator review.
func (q *Queue) UserDetail(ctx context.Context, callerID, userID int64) (*model.User, error) {
	if err := q.authorize(callerID); err != nil {
		return nil, err
	}
	return q.store.GetUser(ctx, userID)
}
