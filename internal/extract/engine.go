package extract

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/halcyon-research/market-cli/internal/catalog"
	"github.com/halcyon-research/market-cli/internal/coverage"
	"github.com/halcyon-research/market-cli/internal/db"
	"github.com/halcyon-research/market-cli/internal/fingerprint"
	"github.com/halcyon-research/market-cli/internal/landing"
	"github.com/halcyon-research/market-cli/internal/schedule"
	"github.com/halcyon-research/market-cli/internal/upstream"
	"github.com/halcyon-research/market-cli/internal/watermark"
)

// Options tunes an extraction pass.
type Options struct {
	BatchSize      int
	Workers        int
	Staleness      time.Duration
	FailureCeiling int
	CoverageFloor  float64
	Thresholds     catalog.Thresholds
	Overrides      schedule.Overrides
}

// PassResult is the outcome of one extraction pass over one table.
type PassResult struct {
	Spec       string    `json:"spec"`
	Table      string    `json:"table"`
	RunID      uuid.UUID `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Selected   int       `json:"selected"`
	Inserted   int64     `json:"inserted"`
	Updated    int64     `json:"updated"`
	Unchanged  int64     `json:"unchanged"`
	Empty      int       `json:"empty"`
	Deferred   int       `json:"deferred"`
	Failed     int       `json:"failed"`
}

// Engine orchestrates extraction passes.
type Engine struct {
	pool       db.Pool
	client     *upstream.Client
	watermarks *watermark.Store
	landings   *landing.Store
	coverage   coverage.Provider
	reg        *Registry
	opts       Options
	now        func() time.Time
}

// NewEngine creates an extraction engine.
func NewEngine(pool db.Pool, client *upstream.Client, cov coverage.Provider, reg *Registry, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.FailureCeiling <= 0 {
		opts.FailureCeiling = 3
	}
	if opts.Staleness <= 0 {
		opts.Staleness = 24 * time.Hour
	}
	return &Engine{
		pool:       pool,
		client:     client,
		watermarks: watermark.NewStore(pool),
		landings:   landing.NewStore(pool),
		coverage:   cov,
		reg:        reg,
		opts:       opts,
		now:        time.Now,
	}
}

// RunAll runs one pass per selected spec, in registration order. A failing
// pass is logged and does not stop later passes.
func (e *Engine) RunAll(ctx context.Context, names []string, record func(*PassResult)) error {
	specs, err := e.reg.Select(names)
	if err != nil {
		return err
	}
	var firstErr error
	for _, spec := range specs {
		res, err := e.RunPass(ctx, spec.Name)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			zap.L().Error("pass failed", zap.String("spec", spec.Name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if record != nil {
			record(res)
		}
	}
	return firstErr
}

// RunPass runs one extraction pass over one table: select due entities, rank
// them, then fetch/land/upsert concurrently. One entity's failure is recorded
// on its watermark and never aborts the pass.
func (e *Engine) RunPass(ctx context.Context, name string) (*PassResult, error) {
	spec, err := e.reg.Get(name)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	log := zap.L().With(zap.String("spec", spec.Name), zap.String("table", spec.Table))

	staleness := e.opts.Overrides.Staleness(spec.Table, e.opts.Staleness)
	batch := e.opts.Overrides.BatchSize(spec.Table, e.opts.BatchSize)
	expected := spec.Rule.ExpectedPeriod(now)

	candidates, err := e.watermarks.GetDue(ctx, spec.Table, now, watermark.DueOptions{
		Staleness:      staleness,
		FailureCeiling: e.opts.FailureCeiling,
		ExpectedPeriod: expected,
		AssetTypes:     spec.AssetTypes,
	})
	if err != nil {
		return nil, err
	}

	scores, err := e.coverage.Scores(ctx, spec.Table)
	if err != nil {
		log.Warn("coverage scores unavailable, staleness-only ordering", zap.Error(err))
		scores = nil
	}

	ranked := schedule.Order(candidates, scores, schedule.Options{
		Thresholds:     e.opts.Thresholds,
		CoverageFloor:  e.opts.CoverageFloor,
		ExpectedPeriod: expected,
		BatchSize:      batch,
	})

	res := &PassResult{
		Spec:      spec.Name,
		Table:     spec.Table,
		RunID:     uuid.New(),
		StartedAt: now,
		Selected:  len(ranked),
	}

	log.Info("pass starting",
		zap.String("run_id", res.RunID.String()),
		zap.Int("due", len(candidates)),
		zap.Int("selected", len(ranked)),
	)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for _, r := range ranked {
		g.Go(func() error {
			out := e.processEntity(gctx, spec, r.Candidate, res.RunID)
			mu.Lock()
			res.Inserted += out.inserted
			res.Updated += out.updated
			res.Unchanged += out.unchanged
			switch out.state {
			case entityEmpty:
				res.Empty++
			case entityDeferred:
				res.Deferred++
			case entityFailed:
				res.Failed++
			}
			mu.Unlock()
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrapf(err, "extract: pass %s interrupted", spec.Name)
	}

	res.FinishedAt = e.now().UTC()
	log.Info("pass complete",
		zap.String("run_id", res.RunID.String()),
		zap.Int64("inserted", res.Inserted),
		zap.Int64("updated", res.Updated),
		zap.Int64("unchanged", res.Unchanged),
		zap.Int("empty", res.Empty),
		zap.Int("deferred", res.Deferred),
		zap.Int("failed", res.Failed),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

type entityState int

const (
	entityOK entityState = iota
	entityEmpty
	entityDeferred
	entityFailed
)

type entityOutcome struct {
	state                        entityState
	inserted, updated, unchanged int64
}

// processEntity fetches, lands, and applies one entity. All failure paths
// record on the watermark; none propagate.
func (e *Engine) processEntity(ctx context.Context, spec *TableSpec, c watermark.Candidate, runID uuid.UUID) entityOutcome {
	log := zap.L().With(
		zap.String("spec", spec.Name),
		zap.String("symbol", c.Symbol),
		zap.Int64("entity_id", c.EntityID),
	)
	now := e.now().UTC()

	raw, err := e.client.Fetch(ctx, spec.APIFunction, spec.Params(c.Symbol))
	if err != nil {
		log.Warn("fetch failed", zap.Error(err))
		e.recordFailure(ctx, spec, c, now, log)
		return entityOutcome{state: entityFailed}
	}

	status := upstream.Classify(raw)

	var respFP string
	payload, decodeErr := upstream.Decode(raw)
	if decodeErr == nil {
		if fp, err := fingerprint.Response(payload); err == nil {
			respFP = fp
		}
	}

	// Prior fingerprint must be read before this response is landed.
	lastFP, err := e.landings.LastSuccessFingerprint(ctx, spec.Table, c.EntityID)
	if err != nil {
		log.Warn("fingerprint lookup failed", zap.Error(err))
		e.recordFailure(ctx, spec, c, now, log)
		return entityOutcome{state: entityFailed}
	}

	if _, err := e.landings.Append(ctx, landing.Record{
		EntityID:           c.EntityID,
		TableName:          spec.Table,
		APIFunction:        spec.APIFunction,
		Payload:            raw,
		ContentFingerprint: respFP,
		ResponseStatus:     status,
		RunID:              runID,
		FetchedAt:          now,
	}); err != nil {
		log.Warn("landing append failed", zap.Error(err))
		e.recordFailure(ctx, spec, c, now, log)
		return entityOutcome{state: entityFailed}
	}

	switch status {
	case landing.StatusRateLimited:
		// Not the entity's fault. Leave the watermark alone and let the next
		// pass pick it up again.
		log.Debug("deferred by upstream throttling")
		return entityOutcome{state: entityDeferred}

	case landing.StatusError:
		log.Warn("upstream rejected request")
		e.recordFailure(ctx, spec, c, now, log)
		return entityOutcome{state: entityFailed}

	case landing.StatusEmpty:
		// The entity exists but has no content for this function. That is a
		// successful confirmation, not a failure.
		if err := e.watermarks.RecordSuccess(ctx, spec.Table, c.EntityID, nil, now); err != nil {
			log.Warn("watermark update failed", zap.Error(err))
		}
		return entityOutcome{state: entityEmpty}
	}

	if decodeErr != nil {
		log.Warn("payload decode failed", zap.Error(decodeErr))
		e.recordFailure(ctx, spec, c, now, log)
		return entityOutcome{state: entityFailed}
	}

	if respFP != "" && respFP == lastFP {
		// Byte-equivalent to the previous successful fetch; skip
		// transformation entirely.
		if err := e.watermarks.RecordSuccess(ctx, spec.Table, c.EntityID, nil, now); err != nil {
			log.Warn("watermark update failed", zap.Error(err))
		}
		return entityOutcome{state: entityOK, unchanged: 1}
	}

	records, err := spec.Transform(c.Symbol, payload)
	if err != nil {
		log.Warn("transform failed", zap.Error(err))
		e.recordFailure(ctx, spec, c, now, log)
		return entityOutcome{state: entityFailed}
	}

	var out entityOutcome
	rowCfg := db.RowConfig{
		Table:          spec.Table,
		Columns:        append(append([]string{"entity_id"}, spec.Columns...), "content_fingerprint"),
		ConflictKeys:   spec.NaturalKey,
		FingerprintCol: "content_fingerprint",
	}
	for _, rec := range records {
		fp, err := fingerprint.Business(rec.Fields)
		if err != nil {
			log.Warn("row fingerprint failed", zap.Error(err))
			e.recordFailure(ctx, spec, c, now, log)
			return entityOutcome{state: entityFailed}
		}

		values := make([]any, 0, len(rowCfg.Columns))
		values = append(values, c.EntityID)
		for _, col := range spec.Columns {
			values = append(values, rec.Fields[col])
		}
		values = append(values, fp)

		outcome, err := db.UpsertRow(ctx, e.pool, rowCfg, values)
		if err != nil {
			log.Warn("upsert failed", zap.Error(err))
			e.recordFailure(ctx, spec, c, now, log)
			return entityOutcome{state: entityFailed}
		}
		switch outcome {
		case db.Inserted:
			out.inserted++
		case db.Updated:
			out.updated++
		case db.Unchanged:
			out.unchanged++
		}
	}

	var period *time.Time
	if max := MaxPeriod(records); !max.IsZero() {
		period = &max
	}
	if err := e.watermarks.RecordSuccess(ctx, spec.Table, c.EntityID, period, now); err != nil {
		log.Warn("watermark update failed", zap.Error(err))
	}
	return out
}

func (e *Engine) recordFailure(ctx context.Context, spec *TableSpec, c watermark.Candidate, now time.Time, log *zap.Logger) {
	if ctx.Err() != nil {
		return
	}
	if err := e.watermarks.RecordFailure(ctx, spec.Table, c.EntityID, now); err != nil {
		log.Warn("failure record failed", zap.Error(err))
	}
	if c.ConsecutiveFailures+1 >= e.opts.FailureCeiling {
		log.Warn("failure ceiling reached, suspending entity",
			zap.Int("consecutive_failures", c.ConsecutiveFailures+1),
		)
	}
}
