package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/cnpj-finder/internal/model"
	"github.com/sells-group/cnpj-finder/internal/resilience"
	"github.com/sells-group/cnpj-finder/pkg/serper"
)

// ErrNoPrincipal is returned when Run is called without a caller identity.
var ErrNoPrincipal = eris.New("pipeline: no authorized principal")

// Config controls one enrichment pipeline.
type Config struct {
	DefaultState   string
	DefaultCity    string
	Delay          time.Duration // pause between searched records
	CandidateSites []string      // searched in order, first match wins
	ResultsPerSite int           // hits scanned per site
	QuerySuffix    string        // keyword appended to every site query

	// Workers > 1 enables parallel mode; Delay is then replaced by a shared
	// limiter of RateLimitRPS requests per second (1/Delay when unset).
	Workers      int
	RateLimitRPS float64
}

// Validate checks the config and returns a copy with empty sites dropped and
// Workers defaulted.
func (c Config) Validate() (Config, error) {
	sites := make([]string, 0, len(c.CandidateSites))
	for _, s := range c.CandidateSites {
		if s = strings.TrimSpace(s); s != "" {
			sites = append(sites, s)
		}
	}
	if len(sites) == 0 {
		return c, eris.New("pipeline: at least one candidate site is required")
	}
	if c.ResultsPerSite < 1 {
		return c, eris.Errorf("pipeline: results per site must be >= 1, got %d", c.ResultsPerSite)
	}
	if c.Delay < 0 {
		return c, eris.Errorf("pipeline: delay must be >= 0, got %s", c.Delay)
	}
	if c.RateLimitRPS < 0 {
		return c, eris.Errorf("pipeline: rate limit must be >= 0, got %g", c.RateLimitRPS)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	c.CandidateSites = sites
	return c, nil
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCircuitBreaker routes every search call through cb.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(p *Pipeline) {
		p.breaker = cb
	}
}

// Pipeline looks up identifiers for company records via site-scoped searches.
type Pipeline struct {
	search  serper.Client
	cfg     Config
	breaker *resilience.CircuitBreaker
	limiter *rate.Limiter

	// sleep allows test injection of the inter-record delay.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Pipeline. The config is validated up front.
func New(client serper.Client, cfg Config, opts ...Option) (*Pipeline, error) {
	if client == nil {
		return nil, eris.New("pipeline: search client is required")
	}
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		search: client,
		cfg:    cfg,
		sleep:  sleepCtx,
	}
	if cfg.Workers > 1 {
		p.limiter = newLimiter(cfg)
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Config returns the validated configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// recordResult is the outcome of enriching one record plus its call accounting.
type recordResult struct {
	out      model.OutputRecord
	calls    int
	failures int
	searched bool
}

// Run enriches records in order and returns exactly one output per input.
// Search failures degrade to NOT_FOUND; only invalid calls and cancellation
// return an error.
func (p *Pipeline) Run(ctx context.Context, principal model.Principal, records []model.InputRecord, obs Observer) ([]model.OutputRecord, *model.RunSummary, error) {
	if principal.IsZero() {
		return nil, nil, ErrNoPrincipal
	}
	if obs == nil {
		obs = nopObserver{}
	}

	summary := &model.RunSummary{
		RunID:     uuid.NewString(),
		Principal: principal,
	}
	log := zap.L().With(
		zap.String("run_id", summary.RunID),
		zap.String("principal", principal.Subject),
		zap.String("source", principal.Source),
	)
	log.Info("pipeline: starting run",
		zap.Int("records", len(records)),
		zap.Int("sites", len(p.cfg.CandidateSites)),
		zap.Int("workers", p.cfg.Workers),
	)

	start := time.Now()
	var (
		results []recordResult
		err     error
	)
	if p.cfg.Workers > 1 {
		results, err = p.runParallel(ctx, log, records, obs)
	} else {
		results, err = p.runSequential(ctx, log, records, obs)
	}
	if err != nil {
		log.Warn("pipeline: run aborted", zap.Error(err))
		return nil, nil, err
	}

	out := make([]model.OutputRecord, len(results))
	for i, r := range results {
		out[i] = r.out
		summary.Add(r.out)
		summary.SearchCalls += r.calls
		summary.SearchFailures += r.failures
	}
	summary.Duration = time.Since(start)

	log.Info("pipeline: run complete",
		zap.Int("total", summary.Total),
		zap.Int("found", summary.Found),
		zap.Int("not_found", summary.NotFound),
		zap.Int("missing_input", summary.MissingInput),
		zap.Int("search_calls", summary.SearchCalls),
		zap.Int("search_failures", summary.SearchFailures),
		zap.Duration("duration", summary.Duration),
	)
	return out, summary, nil
}

func (p *Pipeline) runSequential(ctx context.Context, log *zap.Logger, records []model.InputRecord, obs Observer) ([]recordResult, error) {
	results := make([]recordResult, len(records))
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrapf(err, "pipeline: cancelled at record %d/%d", i+1, len(records))
		}

		results[i] = p.enrich(ctx, log, rec)
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrapf(err, "pipeline: cancelled at record %d/%d", i+1, len(records))
		}
		obs.Progress(i+1, len(records))

		if results[i].searched && p.cfg.Delay > 0 && i < len(records)-1 {
			if err := p.sleep(ctx, p.cfg.Delay); err != nil {
				return nil, eris.Wrapf(err, "pipeline: cancelled at record %d/%d", i+1, len(records))
			}
		}
	}
	return results, nil
}

func (p *Pipeline) enrich(ctx context.Context, log *zap.Logger, rec model.InputRecord) recordResult {
	company := Normalize(rec.Company)
	city := Normalize(rec.City)
	if city == "" {
		city = Normalize(p.cfg.DefaultCity)
	}
	state := Normalize(rec.StateCode)
	if state == "" {
		state = Normalize(p.cfg.DefaultState)
	}

	res := recordResult{
		out: model.OutputRecord{
			Company:   company,
			City:      city,
			StateCode: state,
		},
	}
	if company == "" {
		res.out.Status = model.StatusMissingInput
		return res
	}
	res.searched = true

	base := BaseQuery(company, city, state)
	for _, site := range p.cfg.CandidateSites {
		if ctx.Err() != nil {
			break
		}

		query := SiteQuery(site, base, p.cfg.QuerySuffix)
		resp, err := p.searchSite(ctx, query)
		res.calls++
		if err != nil {
			res.failures++
			log.Warn("pipeline: site lookup failed",
				zap.String("company", company),
				zap.String("site", site),
				zap.Error(err),
			)
			continue
		}

		if id := firstIdentifier(resp.Organic, p.cfg.ResultsPerSite); id != "" {
			res.out.Identifier = id
			log.Debug("pipeline: identifier found",
				zap.String("company", company),
				zap.String("site", site),
				zap.String("identifier", id),
			)
			break
		}
	}

	if res.out.Identifier != "" {
		res.out.Status = model.StatusFound
	} else {
		res.out.Status = model.StatusNotFound
	}
	return res
}

func (p *Pipeline) searchSite(ctx context.Context, query string) (*serper.SearchResponse, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "pipeline: rate limit wait")
		}
	}

	call := func(ctx context.Context) (*serper.SearchResponse, error) {
		return p.search.Search(ctx, query, p.cfg.ResultsPerSite)
	}
	if p.breaker != nil {
		return resilience.ExecuteVal(ctx, p.breaker, call)
	}
	return call(ctx)
}

// firstIdentifier scans at most limit hits, even if the API returned more.
func firstIdentifier(hits []serper.OrganicResult, limit int) string {
	if len(hits) > limit {
		hits = hits[:limit]
	}
	for _, h := range hits {
		if id := ExtractIdentifier(hitText(h.Title, h.Snippet)); id != "" {
			return id
		}
	}
	return ""
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
