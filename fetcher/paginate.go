package fetcher

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"rentscout/identity"
	"rentscout/models"
)

const (
	DefaultPageSize = 100
	DefaultMaxPages = 50
)

// Pager fetches a single page of filter results.
type Pager interface {
	FetchPage(ctx context.Context, payload Payload) (Page, error)
}

// Paginator walks a Pager until the data is exhausted.
type Paginator struct {
	Pager    Pager
	PageSize int
	MaxPages int
	Logger   *logrus.Logger
}

func NewPaginator(pager Pager, pageSize, maxPages int, logger *logrus.Logger) *Paginator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Paginator{Pager: pager, PageSize: pageSize, MaxPages: maxPages, Logger: logger}
}

// FetchAll requests pages 1, 2, ... in order and stops when the reported
// page count is reached, when an unreported count meets a short page, or
// at MaxPages. Any failure discards what was accumulated. The result is
// de-duplicated by id.
func (p *Paginator) FetchAll(ctx context.Context, base Payload) ([]models.RawRecord, error) {
	var all []models.RawRecord

	for page := 1; page <= p.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := p.Pager.FetchPage(ctx, WithPagination(base, page, p.PageSize))
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		all = append(all, res.Records...)
		p.Logger.WithFields(logrus.Fields{
			"page":  page,
			"count": len(res.Records),
			"total": len(all),
		}).Debug("Fetched filter page")

		if res.TotalPages > 0 {
			if page >= res.TotalPages {
				break
			}
			continue
		}
		if len(res.Records) < p.PageSize {
			break
		}
		if page == p.MaxPages {
			p.Logger.WithField("max_pages", p.MaxPages).Warn("Page limit reached before backend signalled the end")
		}
	}

	return identity.Dedupe(all), nil
}
