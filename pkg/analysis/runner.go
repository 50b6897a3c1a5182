package analysis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	capterr "github.com/scottring/family-planner-sub006/pkg/errors"
)

// DefaultTimeout bounds each optional analyzer.
const DefaultTimeout = 15 * time.Second

// Analyzer outcomes reported to the Observer.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

var errNoResult = errors.New("analyzer returned no result")

// Observer is told how each analyzer run went.
type Observer interface {
	ObserveAnalyzer(name, outcome string, d time.Duration)
}

// Runner runs the rule-based analyzer inline and the optional analyzers
// concurrently, each under its own timeout, then merges the results.
type Runner struct {
	optional []Analyzer
	timeout  time.Duration
	logger   *slog.Logger
	observer Observer
}

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) { r.observer = o }
}

// NewRunner builds a runner over the optional analyzers. Analyzers are
// matched to merge slots by Name (MethodNLP, MethodAI); nil entries are
// skipped.
func NewRunner(optional []Analyzer, opts ...RunnerOption) *Runner {
	r := &Runner{timeout: DefaultTimeout, logger: slog.Default()}
	for _, a := range optional {
		if a != nil {
			r.optional = append(r.optional, a)
		}
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run analyzes in and merges everything that finished in time. It never
// fails: degraded analyzers are recorded in Final.Warnings.
func (r *Runner) Run(ctx context.Context, in Input, src *SourceContext) Final {
	start := time.Now()
	rule := AnalyzeRules(in.Text)
	r.observe(MethodRuleBased, OutcomeOK, time.Since(start))

	results := make([]*Result, len(r.optional))
	errs := make([]error, len(r.optional))

	var g errgroup.Group
	g.SetLimit(len(r.optional) + 1)
	for i, a := range r.optional {
		g.Go(func() error {
			results[i], errs[i] = r.runOne(ctx, a, in)
			return nil
		})
	}
	_ = g.Wait()

	var nlp, gen *Result
	var warnings []string
	for i, a := range r.optional {
		if errs[i] != nil {
			degraded := capterr.NewExtractionDegraded(a.Name(), errs[i])
			r.logger.Warn("analyzer degraded", "analyzer", a.Name(), "error", errs[i])
			warnings = append(warnings, degraded.Message)
			continue
		}
		switch a.Name() {
		case MethodNLP:
			nlp = results[i]
		case MethodAI:
			gen = results[i]
		default:
			r.logger.Debug("ignoring result of unknown analyzer", "analyzer", a.Name())
		}
	}

	f := Merge(rule, nlp, gen, src)
	f.Warnings = append(f.Warnings, warnings...)
	return f
}

func (r *Runner) runOne(ctx context.Context, a Analyzer, in Input) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	res, err := a.Analyze(ctx, in)
	switch {
	case err != nil && ctx.Err() == context.DeadlineExceeded:
		r.observe(a.Name(), OutcomeTimeout, time.Since(start))
	case err != nil:
		r.observe(a.Name(), OutcomeError, time.Since(start))
	case res == nil:
		r.observe(a.Name(), OutcomeError, time.Since(start))
		return nil, errNoResult
	default:
		r.observe(a.Name(), OutcomeOK, time.Since(start))
	}
	return res, err
}

func (r *Runner) observe(name, outcome string, d time.Duration) {
	if r.observer != nil {
		r.observer.ObserveAnalyzer(name, outcome, d)
	}
}
