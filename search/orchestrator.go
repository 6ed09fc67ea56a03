// Package search runs user searches against the listing backend, working
// around its inconsistent filter vocabulary, and refines the merged
// results locally.
package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"rentscout/extract"
	"rentscout/fetcher"
	"rentscout/identity"
	"rentscout/models"
)

// Stage names the step that produced a result.
type Stage string

const (
	StageBedrooms      Stage = "bedrooms"
	StageTypes         Stage = "types"
	StagePerType       Stage = "per_type"
	StageLabels        Stage = "labels"
	StageUnconstrained Stage = "unconstrained"
	StageShowAll       Stage = "show_all"
)

// Result is the outcome of a search. An empty result is not a failure.
type Result struct {
	Records []models.PropertyRecord
	Stage   Stage
}

func (r Result) Empty() bool {
	return len(r.Records) == 0
}

type Options struct {
	Labels   extract.Labels
	Bounds   fetcher.Bounds
	PageSize int
	MaxPages int
	Timeout  time.Duration
	Logger   *logrus.Logger
}

type Orchestrator struct {
	paginator *fetcher.Paginator
	labels    extract.Labels
	bounds    fetcher.Bounds
	refiner   refiner
	timeout   time.Duration
	logger    *logrus.Logger

	generation atomic.Uint64
	mu         sync.Mutex
	cancel     context.CancelFunc
}

func New(pager fetcher.Pager, opts Options) *Orchestrator {
	if opts.Labels == nil {
		opts.Labels = extract.DefaultLabels
	}
	if opts.Bounds == (fetcher.Bounds{}) {
		opts.Bounds = fetcher.DefaultBounds
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Orchestrator{
		paginator: fetcher.NewPaginator(pager, opts.PageSize, opts.MaxPages, opts.Logger),
		labels:    opts.Labels,
		bounds:    opts.Bounds,
		refiner:   refiner{labels: opts.Labels, bounds: opts.Bounds},
		timeout:   opts.Timeout,
		logger:    opts.Logger,
	}
}

// Run executes the staged search for c:
//  1. a specific bedroom selection is tried as "n" and then "nBHK"; the
//     first non-empty answer is returned as is;
//  2. selected types are fetched joined, then one request per type in
//     parallel, then by their UI labels;
//  3. without types, the remaining filters are fetched once;
//  4. the result is refined locally by type and bedrooms.
//
// Any fetch failure aborts the search.
func (o *Orchestrator) Run(ctx context.Context, c models.FilterCriteria) (Result, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	c.Price = c.Price.Or(o.bounds.Price)
	c.Area = c.Area.Or(o.bounds.Area)
	base := fetcher.BuildPayload(c, o.bounds, o.labels)
	slugs := o.labels.Slugs(c.Types)
	log := o.logger.WithFields(logrus.Fields{"types": slugs, "bedrooms": string(c.Bedrooms)})

	if n, ok := c.Bedrooms.Exact(); ok {
		for _, encoding := range []string{strconv.Itoa(n), fmt.Sprintf("%dBHK", n)} {
			records, err := o.paginator.FetchAll(ctx, base.With("bedrooms", encoding))
			if err != nil {
				return Result{}, err
			}
			if len(records) > 0 {
				log.WithFields(logrus.Fields{"stage": StageBedrooms, "encoding": encoding, "count": len(records)}).Info("Search answered by bedroom filter")
				return o.result(records, StageBedrooms), nil
			}
		}
	}

	var (
		records []models.RawRecord
		stage   Stage
		err     error
	)
	if len(slugs) > 0 {
		records, stage, err = o.fetchTypes(ctx, base, slugs, c.Types)
	} else {
		stage = StageUnconstrained
		records, err = o.paginator.FetchAll(ctx, base)
	}
	if err != nil {
		return Result{}, err
	}

	res := o.result(records, stage)
	res.Records = o.refiner.Refine(res.Records, c)
	log.WithFields(logrus.Fields{"stage": stage, "fetched": len(records), "count": len(res.Records)}).Info("Search finished")
	return res, nil
}

func (o *Orchestrator) fetchTypes(ctx context.Context, base fetcher.Payload, slugs, labels []string) ([]models.RawRecord, Stage, error) {
	joined := strings.Join(slugs, ",")
	records, err := o.paginator.FetchAll(ctx, base.With("property_type", joined))
	if err != nil || len(records) > 0 {
		return records, StageTypes, err
	}

	if len(slugs) > 1 {
		records, err = o.fetchPerType(ctx, base, slugs)
		if err != nil || len(records) > 0 {
			return records, StagePerType, err
		}
	}

	var trimmed []string
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			trimmed = append(trimmed, l)
		}
	}
	byLabel := strings.Join(trimmed, ",")
	if byLabel == "" || byLabel == joined {
		return records, StageLabels, nil
	}
	records, err = o.paginator.FetchAll(ctx, base.With("property_type", byLabel))
	return records, StageLabels, err
}

// fetchPerType issues one exhaustive fetch per slug concurrently and merges
// them in slug order, whatever order they complete in.
func (o *Orchestrator) fetchPerType(ctx context.Context, base fetcher.Payload, slugs []string) ([]models.RawRecord, error) {
	results := make([][]models.RawRecord, len(slugs))
	g, gctx := errgroup.WithContext(ctx)
	for i, slug := range slugs {
		g.Go(func() error {
			records, err := o.paginator.FetchAll(gctx, base.With("property_type", slug))
			if err != nil {
				return fmt.Errorf("type %s: %w", slug, err)
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return identity.Dedupe(results...), nil
}

// ShowAll fetches every listing with a default payload, ignoring any
// criteria. It backs both the initial load and a user reset.
func (o *Orchestrator) ShowAll(ctx context.Context) (Result, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	records, err := o.paginator.FetchAll(ctx, fetcher.BuildPayload(models.FilterCriteria{}, o.bounds, o.labels))
	if err != nil {
		return Result{}, err
	}
	o.logger.WithField("count", len(records)).Info("Loaded all properties")
	return o.result(records, StageShowAll), nil
}

// Search runs c and reports through l. Starting a search cancels the one
// still in flight; a superseded search reports nothing.
func (o *Orchestrator) Search(ctx context.Context, c models.FilterCriteria, l Listener) {
	o.deliver(ctx, l, func(ctx context.Context) (Result, error) {
		return o.Run(ctx, c)
	})
}

// Reset discards all filters and reports every listing through l.
func (o *Orchestrator) Reset(ctx context.Context, l Listener) {
	o.deliver(ctx, l, o.ShowAll)
}

func (o *Orchestrator) deliver(ctx context.Context, l Listener, run func(context.Context) (Result, error)) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	o.cancel = cancel
	gen := o.generation.Add(1)
	o.mu.Unlock()

	l.OnSearchingChange(true)
	l.OnError("")

	res, err := run(ctx)

	o.mu.Lock()
	current := gen == o.generation.Load()
	if current {
		o.cancel = nil
	}
	o.mu.Unlock()

	if !current {
		o.logger.WithField("generation", gen).Debug("Discarding superseded search")
		return
	}

	if err != nil {
		o.logger.WithError(err).Error("Search failed")
		l.OnError(ErrorMessage(err))
		l.OnResults([]models.PropertyRecord{})
	} else {
		l.OnResults(res.Records)
	}
	l.OnSearchingChange(false)
}

// Refine exposes the local post-filter for callers holding records from
// elsewhere, such as a cached listing page.
func (o *Orchestrator) Refine(records []models.PropertyRecord, c models.FilterCriteria) []models.PropertyRecord {
	return o.refiner.Refine(records, c)
}

func (o *Orchestrator) result(records []models.RawRecord, stage Stage) Result {
	out := make([]models.PropertyRecord, 0, len(records))
	for _, raw := range records {
		out = append(out, extract.Normalize(identity.Key(raw), raw, o.labels))
	}
	return Result{Records: out, Stage: stage}
}

func (o *Orchestrator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}
