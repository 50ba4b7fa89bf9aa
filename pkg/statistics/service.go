package statistics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fitmatch/insights/pkg/fitness"
	"github.com/fitmatch/insights/pkg/observability"
)

var tracer = otel.Tracer("github.com/fitmatch/insights/pkg/statistics")

// Report outcomes passed to the Recorder
const (
	OutcomeOK        = "ok"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// Recorder observes report executions
type Recorder interface {
	ObserveReport(report, outcome string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveReport(string, string, time.Duration) {}

// LockedRule decides how the two lock signals combine
type LockedRule string

const (
	// LockedAny locks an account when either signal holds. It matches the
	// inclusive OR the platform has always applied.
	LockedAny LockedRule = "any"
	// LockedExclusive locks an account when exactly one signal holds
	LockedExclusive LockedRule = "exclusive"
)

// ParseLockedRule parses a LockedRule, defaulting to LockedAny on empty input
func ParseLockedRule(s string) (LockedRule, error) {
	switch LockedRule(s) {
	case "", LockedAny:
		return LockedAny, nil
	case LockedExclusive:
		return LockedExclusive, nil
	default:
		return "", fmt.Errorf("invalid locked rule %q (want %q or %q)", s, LockedAny, LockedExclusive)
	}
}

// Service computes admin dashboard statistics. It holds no per-request
// state and is safe for concurrent use.
type Service struct {
	store       Store
	activity    *ActivityResolver
	logger      *observability.Logger
	recorder    Recorder
	now         func() time.Time
	concurrency int
	lockedRule  LockedRule
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithConcurrency bounds the number of sub-reports computed in parallel
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLockedRule selects how account lock signals combine
func WithLockedRule(rule LockedRule) Option {
	return func(s *Service) { s.lockedRule = rule }
}

// WithRecorder attaches a report execution recorder
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewService creates a new statistics service
func NewService(store Store, logger *observability.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}
	s := &Service{
		store:       store,
		activity:    NewActivityResolver(store),
		logger:      logger.WithField("component", "statistics"),
		recorder:    nopRecorder{},
		now:         time.Now,
		concurrency: 4,
		lockedRule:  LockedAny,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Activity exposes the activity union resolver
func (s *Service) Activity() *ActivityResolver {
	return s.activity
}

func (s *Service) today() time.Time {
	return fitness.StartOfDay(s.now())
}

// ResolveWindow turns optional calendar dates into a report window.
// Both nil selects all time. A missing bound defaults to the current month;
// when that default falls on the wrong side of the given bound the window
// is empty and sits just outside the requested range.
func ResolveWindow(from, to *time.Time, now time.Time) fitness.Window {
	if from == nil && to == nil {
		return fitness.AllTime()
	}
	first := fitness.StartOfMonth(now)
	if from != nil {
		first = *from
	}
	last := fitness.EndOfMonth(now)
	if to != nil {
		last = *to
	}
	if fitness.StartOfDay(last).Before(fitness.StartOfDay(first)) {
		if from != nil {
			return fitness.EmptyWindow(first)
		}
		return fitness.EmptyWindow(last.AddDate(0, 0, 1))
	}
	return fitness.DayWindow(first, last)
}

func (s *Service) window(from, to *time.Time) fitness.Window {
	return ResolveWindow(from, to, s.now())
}

func isCancellation(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		ctx.Err() != nil
}

// runReport executes fn inside a span and turns cancellation into an empty
// report. Any other failure is wrapped with the report name.
func runReport[T any](ctx context.Context, s *Service, name string, w fitness.Window, empty func() *T, fn func(context.Context) (*T, error)) (*T, error) {
	ctx, span := tracer.Start(ctx, "statistics."+name, trace.WithAttributes(
		attribute.Bool("window.all_time", w.IsAllTime()),
		attribute.String("window.start", w.Start.Format(fitness.DateLayout)),
		attribute.String("window.end", w.End.Format(fitness.DateLayout)),
	))
	defer span.End()

	start := time.Now()
	result, err := fn(ctx)
	switch {
	case err == nil:
		s.recorder.ObserveReport(name, OutcomeOK, time.Since(start))
		return result, nil
	case isCancellation(ctx, err):
		s.recorder.ObserveReport(name, OutcomeCancelled, time.Since(start))
		span.SetAttributes(attribute.Bool("cancelled", true))
		s.logger.WithField("report", name).WithError(err).Warn("report cancelled, returning empty result")
		return empty(), nil
	default:
		s.recorder.ObserveReport(name, OutcomeError, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s: %w", name, err)
	}
}

// GetStatisticsData computes the composite dashboard report
func (s *Service) GetStatisticsData(ctx context.Context, from, to *time.Time) (*StatisticsReport, error) {
	w := s.window(from, to)
	now := s.now()
	return runReport(ctx, s, "statistics", w,
		func() *StatisticsReport { return newStatisticsReport(w, now) },
		func(ctx context.Context) (*StatisticsReport, error) { return s.statistics(ctx, w, now) })
}

func (s *Service) statistics(ctx context.Context, w fitness.Window, now time.Time) (*StatisticsReport, error) {
	report := newStatisticsReport(w, now)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	// Each task writes to its own report field.
	g.Go(func() error {
		v, err := s.overview(gctx, w)
		if err != nil {
			return fmt.Errorf("overview: %w", err)
		}
		report.Overview = *v
		return nil
	})
	g.Go(func() error {
		v, err := s.userAnalytics(gctx, w)
		if err != nil {
			return fmt.Errorf("users: %w", err)
		}
		report.Users = *v
		return nil
	})
	g.Go(func() error {
		v, err := s.ptAnalytics(gctx, w)
		if err != nil {
			return fmt.Errorf("trainers: %w", err)
		}
		report.Trainers = *v
		return nil
	})
	g.Go(func() error {
		v, err := s.healthAnalytics(gctx, w)
		if err != nil {
			return fmt.Errorf("health: %w", err)
		}
		report.Health = *v
		return nil
	})
	g.Go(func() error {
		v, err := s.goalsAnalytics(gctx, w)
		if err != nil {
			return fmt.Errorf("goals: %w", err)
		}
		report.Goals = *v
		return nil
	})
	g.Go(func() error {
		v, err := s.workoutAnalytics(gctx, w)
		if err != nil {
			return fmt.Errorf("workouts: %w", err)
		}
		report.Workouts = *v
		return nil
	})
	g.Go(func() error {
		v, err := s.nutritionAnalytics(gctx, w)
		if err != nil {
			return fmt.Errorf("nutrition: %w", err)
		}
		report.Nutrition = *v
		return nil
	})
	g.Go(func() error {
		v, err := s.financeAnalytics(gctx, w)
		if err != nil {
			return fmt.Errorf("finance: %w", err)
		}
		report.Finance = *v
		return nil
	})
	g.Go(func() error {
		v, err := s.systemAnalytics(gctx, w)
		if err != nil {
			return fmt.Errorf("system: %w", err)
		}
		report.System = *v
		return nil
	})
	g.Go(func() error {
		v, err := s.behaviorAnalytics(gctx, w)
		if err != nil {
			return fmt.Errorf("behavior: %w", err)
		}
		report.Behavior = *v
		return nil
	})
	g.Go(func() error {
		v, err := s.recentActivities(gctx, DefaultFeedLimit)
		if err != nil {
			return fmt.Errorf("recent activities: %w", err)
		}
		report.RecentActivities = *v
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

// GetOverview computes the headline counts and their growth
func (s *Service) GetOverview(ctx context.Context, from, to *time.Time) (*Overview, error) {
	w := s.window(from, to)
	return runReport(ctx, s, "overview", w, newOverview, func(ctx context.Context) (*Overview, error) {
		return s.overview(ctx, w)
	})
}

// GetUserAnalytics computes client population statistics
func (s *Service) GetUserAnalytics(ctx context.Context, from, to *time.Time) (*UserAnalytics, error) {
	w := s.window(from, to)
	return runReport(ctx, s, "users", w, newUserAnalytics, func(ctx context.Context) (*UserAnalytics, error) {
		return s.userAnalytics(ctx, w)
	})
}

// GetPTAnalytics computes trainer statistics
func (s *Service) GetPTAnalytics(ctx context.Context, from, to *time.Time) (*PTAnalytics, error) {
	w := s.window(from, to)
	return runReport(ctx, s, "trainers", w, newPTAnalytics, func(ctx context.Context) (*PTAnalytics, error) {
		return s.ptAnalytics(ctx, w)
	})
}

// GetHealthAnalytics computes health record statistics
func (s *Service) GetHealthAnalytics(ctx context.Context, from, to *time.Time) (*HealthAnalytics, error) {
	w := s.window(from, to)
	return runReport(ctx, s, "health", w, newHealthAnalytics, func(ctx context.Context) (*HealthAnalytics, error) {
		return s.healthAnalytics(ctx, w)
	})
}

// GetGoalsAnalytics computes goal statistics
func (s *Service) GetGoalsAnalytics(ctx context.Context, from, to *time.Time) (*GoalsAnalytics, error) {
	w := s.window(from, to)
	return runReport(ctx, s, "goals", w, newGoalsAnalytics, func(ctx context.Context) (*GoalsAnalytics, error) {
		return s.goalsAnalytics(ctx, w)
	})
}

// GetWorkoutAnalytics computes workout statistics
func (s *Service) GetWorkoutAnalytics(ctx context.Context, from, to *time.Time) (*WorkoutAnalytics, error) {
	w := s.window(from, to)
	return runReport(ctx, s, "workouts", w, newWorkoutAnalytics, func(ctx context.Context) (*WorkoutAnalytics, error) {
		return s.workoutAnalytics(ctx, w)
	})
}

// GetNutritionAnalytics computes food diary statistics
func (s *Service) GetNutritionAnalytics(ctx context.Context, from, to *time.Time) (*NutritionAnalytics, error) {
	w := s.window(from, to)
	return runReport(ctx, s, "nutrition", w, newNutritionAnalytics, func(ctx context.Context) (*NutritionAnalytics, error) {
		return s.nutritionAnalytics(ctx, w)
	})
}

// GetFinanceAnalytics computes payment statistics
func (s *Service) GetFinanceAnalytics(ctx context.Context, from, to *time.Time) (*FinanceAnalytics, error) {
	w := s.window(from, to)
	return runReport(ctx, s, "finance", w, newFinanceAnalytics, func(ctx context.Context) (*FinanceAnalytics, error) {
		return s.financeAnalytics(ctx, w)
	})
}

// GetSystemAnalytics computes per-table row counts
func (s *Service) GetSystemAnalytics(ctx context.Context, from, to *time.Time) (*SystemAnalytics, error) {
	w := s.window(from, to)
	return runReport(ctx, s, "system", w, newSystemAnalytics, func(ctx context.Context) (*SystemAnalytics, error) {
		return s.systemAnalytics(ctx, w)
	})
}

// GetBehaviorAnalytics computes app usage statistics
func (s *Service) GetBehaviorAnalytics(ctx context.Context, from, to *time.Time) (*BehaviorAnalytics, error) {
	w := s.window(from, to)
	return runReport(ctx, s, "behavior", w, newBehaviorAnalytics, func(ctx context.Context) (*BehaviorAnalytics, error) {
		return s.behaviorAnalytics(ctx, w)
	})
}

// GetRecentActivities returns the newest platform events, newest first
func (s *Service) GetRecentActivities(ctx context.Context, limit int) ([]ActivityEntry, error) {
	now := s.now()
	w := fitness.Window{Start: now.Add(-FeedLookback), End: now}
	feed, err := runReport(ctx, s, "recent_activities", w, newActivityFeed, func(ctx context.Context) (*[]ActivityEntry, error) {
		return s.recentActivities(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	return *feed, nil
}

// GetRetention returns the percentage of clients registered at least
// lookbackDays ago that were active during the last lookbackDays days
func (s *Service) GetRetention(ctx context.Context, lookbackDays int) (float64, error) {
	today := s.today()
	w := fitness.DayWindow(today.AddDate(0, 0, -lookbackDays), today)
	rate, err := runReport(ctx, s, "retention", w, func() *float64 { return new(float64) }, func(ctx context.Context) (*float64, error) {
		clients, err := s.store.Users(ctx, fitness.PopulationClients)
		if err != nil {
			return nil, fmt.Errorf("failed to load clients: %w", err)
		}
		v, err := s.retention(ctx, clients, lookbackDays, today)
		if err != nil {
			return nil, err
		}
		return &v, nil
	})
	if err != nil {
		return 0, err
	}
	return *rate, nil
}
