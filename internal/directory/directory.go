// Package directory serves paginated, filtered windows over the curated
// startup set.
package directory

import (
	"context"

	"go.uber.org/zap"

	"github.com/scoutbase/curator/internal/model"
	"github.com/scoutbase/curator/internal/store"
)

// DefaultPageSize is used when a request does not specify one.
const DefaultPageSize = 25

// Page is one window of directory results plus the page math callers need
// to render pagination without re-querying.
type Page struct {
	Rows       []model.Startup `json:"rows"`
	TotalCount int             `json:"total_count"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

// Service answers directory queries. Read-only.
type Service struct {
	store store.Store
}

// New creates a directory service over the given store.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// List returns the rows for the requested page in stable order plus the
// total count matching the filter. The count is computed independently of
// the page window, so TotalPages stays accurate even when the requested
// page is past the end. Read failures surface as *model.QueryError and the
// partial result must not be displayed.
func (s *Service) List(ctx context.Context, f store.DirectoryFilter) (*Page, error) {
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.Page < 0 {
		f.Page = 0
	}

	rows, total, err := s.store.ListStartups(ctx, f)
	if err != nil {
		return nil, &model.QueryError{Err: err}
	}

	totalPages := (total + f.PageSize - 1) / f.PageSize

	zap.L().Debug("directory page served",
		zap.Int("page", f.Page),
		zap.Int("rows", len(rows)),
		zap.Int("total", total),
	)

	return &Page{
		Rows:       rows,
		TotalCount: total,
		Page:       f.Page,
		PageSize:   f.PageSize,
		TotalPages: totalPages,
	}, nil
}
