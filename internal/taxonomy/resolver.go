package taxonomy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/synum-dev/synum/api"
	"github.com/synum-dev/synum/internal/errors"
)

// DefaultRateLimit is the number of suggestion calls allowed per second.
const DefaultRateLimit = 10

// Suggester queries the archive's taxonomy suggestion service.
type Suggester interface {
	TaxonomySuggest(ctx context.Context, query string) ([]api.Suggestion, error)
}

// Issue describes a bin that could not be resolved to a single taxon.
type Issue struct {
	Bin            string
	Level          Level
	Classification string
	// Suggestions is the unfiltered suggestion list; empty means the bin is
	// unclassified.
	Suggestions []api.Suggestion
}

func (i Issue) String() string {
	if i.Classification == "" {
		return fmt.Sprintf("%s: unclassified", i.Bin)
	}
	if len(i.Suggestions) == 0 {
		return fmt.Sprintf("%s: %s %q: no suggestions (unclassified)", i.Bin, i.Level, i.Classification)
	}
	names := make([]string, len(i.Suggestions))
	for j, s := range i.Suggestions {
		names[j] = fmt.Sprintf("%s (%s)", s.ScientificName, s.TaxID)
	}
	return fmt.Sprintf("%s: %s %q: suggestions [%s]", i.Bin, i.Level, i.Classification, strings.Join(names, ", "))
}

// Report lists every unresolved bin.
type Report struct {
	Issues []Issue
}

func (r *Report) Error() string {
	lines := make([]string, len(r.Issues))
	for i, issue := range r.Issues {
		lines[i] = issue.String()
	}
	return fmt.Sprintf("%d bin(s) could not be assigned a taxon; add them to the manual taxonomy file: %s",
		len(r.Issues), strings.Join(lines, "; "))
}

// Resolver maps bin classifications to archive taxa.
type Resolver struct {
	suggester Suggester
	limiter   *rate.Limiter
	cache     *cache.Cache
	logger    *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRateLimit sets the maximum number of suggestion calls per second.
func WithRateLimit(perSecond float64) Option {
	return func(r *Resolver) {
		if perSecond > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithLogger sets the resolver's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver backed by s.
func NewResolver(s Suggester, opts ...Option) *Resolver {
	r := &Resolver{
		suggester: s,
		limiter:   rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		cache:     cache.New(cache.NoExpiration, 0),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve assigns a taxon to every bin. Bins in manual are taken as given;
// the rest are resolved from their classification. If any bin stays
// unresolved the returned error carries a *Report naming all of them.
func (r *Resolver) Resolve(ctx context.Context, binNames []string, manual map[string]Taxon, classifications map[string]Classification) (map[string]Taxon, error) {
	out := make(map[string]Taxon, len(binNames))
	var report Report

	for _, bin := range binNames {
		if t, ok := manual[bin]; ok {
			r.logger.Debug("manual taxonomy", "bin", bin, "tax_id", t.TaxID, "scientific_name", t.ScientificName)
			out[bin] = t
			continue
		}

		c := classifications[bin]
		level, name, ok := c.Lowest()
		if !ok {
			report.Issues = append(report.Issues, Issue{Bin: bin})
			continue
		}

		suggestions, err := r.suggest(ctx, Query(level, name, c.Domain()))
		if err != nil {
			return nil, err
		}
		var accepted []api.Suggestion
		for _, s := range suggestions {
			if Accept(level, name, s.ScientificName) {
				accepted = append(accepted, s)
			}
		}
		if len(accepted) != 1 {
			report.Issues = append(report.Issues, Issue{Bin: bin, Level: level, Classification: name, Suggestions: suggestions})
			continue
		}
		t := Taxon{TaxID: accepted[0].TaxID, ScientificName: accepted[0].ScientificName}
		r.logger.Info("resolved taxonomy", "bin", bin, "level", level, "classification", name,
			"tax_id", t.TaxID, "scientific_name", t.ScientificName)
		out[bin] = t
	}

	if len(report.Issues) > 0 {
		return nil, errors.New(&report).
			Category(errors.CategoryTaxonomy).
			Context("unresolved", len(report.Issues)).
			Build()
	}
	return out, nil
}

// suggest calls the suggester, waiting on the rate limiter for every call
// that is not served from the cache.
func (r *Resolver) suggest(ctx context.Context, query string) ([]api.Suggestion, error) {
	if cached, found := r.cache.Get(query); found {
		if s, ok := cached.([]api.Suggestion); ok {
			return s, nil
		}
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for taxonomy rate limit: %w", err)
	}
	start := time.Now()
	s, err := r.suggester.TaxonomySuggest(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("taxonomy suggestions for %q: %w", query, err)
	}
	r.logger.Debug("taxonomy suggestions", "query", query, "count", len(s), "elapsed", time.Since(start))
	r.cache.Set(query, s, cache.NoExpiration)
	return s, nil
}
