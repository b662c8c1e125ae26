package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"warden/internal/audit"
	"warden/internal/auth/metrics"
	id "warden/pkg/domain"
)

// CodeStore exposes cleanup for one-time codes.
type CodeStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteByUser(ctx context.Context, userID id.UserID) (int64, error)
}

// UserStore exposes retention deletes for users and their OAuth links.
type UserStore interface {
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) ([]id.UserID, error)
	DeleteStaleAccounts(ctx context.Context, cutoff time.Time) (int64, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, e audit.Event)
}

// Task names a reaper job in logs, metrics and audit events.
type Task string

const (
	TaskExpiredCodes    Task = "expired_codes"
	TaskUnverifiedUsers Task = "unverified_users"
	TaskStaleOAuth      Task = "stale_oauth_accounts"
)

// CleanupResult summarizes the deletions performed by a cleanup run.
type CleanupResult struct {
	DeletedCodes         int64
	DeletedUsers         int64
	DeletedOAuthAccounts int64
}

// Intervals are the schedules of the three tasks.
type Intervals struct {
	Codes      time.Duration
	Unverified time.Duration
	StaleOAuth time.Duration
}

// CleanupService periodically removes expired codes and stale accounts.
type CleanupService struct {
	users     UserStore
	codes     CodeStore
	intervals Intervals

	unverifiedRetention time.Duration
	oauthRetention      time.Duration

	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	now            func() time.Time
}

// CleanupOption configures CleanupService.
type CleanupOption func(*CleanupService)

// WithIntervals overrides the task schedules; zero fields keep their default.
func WithIntervals(in Intervals) CleanupOption {
	return func(s *CleanupService) {
		if in.Codes > 0 {
			s.intervals.Codes = in.Codes
		}
		if in.Unverified > 0 {
			s.intervals.Unverified = in.Unverified
		}
		if in.StaleOAuth > 0 {
			s.intervals.StaleOAuth = in.StaleOAuth
		}
	}
}

// WithRetention sets how long unverified users and unused links of
// inactive users are kept.
func WithRetention(unverified, oauthInactive time.Duration) CleanupOption {
	return func(s *CleanupService) {
		if unverified > 0 {
			s.unverifiedRetention = unverified
		}
		if oauthInactive > 0 {
			s.oauthRetention = oauthInactive
		}
	}
}

// WithCleanupLogger overrides the logger used for cleanup errors.
func WithCleanupLogger(logger *slog.Logger) CleanupOption {
	return func(s *CleanupService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) CleanupOption {
	return func(s *CleanupService) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) CleanupOption {
	return func(s *CleanupService) {
		s.auditPublisher = p
	}
}

func WithClock(now func() time.Time) CleanupOption {
	return func(s *CleanupService) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a CleanupService with required stores and options applied.
func New(users UserStore, codes CodeStore, opts ...CleanupOption) (*CleanupService, error) {
	if users == nil || codes == nil {
		return nil, fmt.Errorf("users and codes stores are required")
	}
	svc := &CleanupService{
		users: users,
		codes: codes,
		intervals: Intervals{
			Codes:      time.Hour,
			Unverified: 24 * time.Hour,
			StaleOAuth: 7 * 24 * time.Hour,
		},
		unverifiedRetention: 7 * 24 * time.Hour,
		oauthRetention:      365 * 24 * time.Hour,
		logger:              slog.Default(),
		now:                 time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs each task on its own schedule until ctx is cancelled.
func (s *CleanupService) Start(ctx context.Context) error {
	codes := time.NewTicker(s.intervals.Codes)
	defer codes.Stop()
	unverified := time.NewTicker(s.intervals.Unverified)
	defer unverified.Stop()
	stale := time.NewTicker(s.intervals.StaleOAuth)
	defer stale.Stop()

	for {
		select {
		case <-codes.C:
			_, _ = s.PurgeExpiredCodes(ctx)
		case <-unverified.C:
			_, _ = s.PurgeUnverifiedUsers(ctx)
		case <-stale.C:
			_, _ = s.PurgeStaleOAuthAccounts(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce runs all three tasks. A failing task does not stop the others;
// their errors are joined.
func (s *CleanupService) RunOnce(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult
	var errs []error

	n, err := s.PurgeExpiredCodes(ctx)
	res.DeletedCodes = n
	errs = append(errs, err)

	n, err = s.PurgeUnverifiedUsers(ctx)
	res.DeletedUsers = n
	errs = append(errs, err)

	n, err = s.PurgeStaleOAuthAccounts(ctx)
	res.DeletedOAuthAccounts = n
	errs = append(errs, err)

	return res, errors.Join(errs...)
}

func (s *CleanupService) PurgeExpiredCodes(ctx context.Context) (int64, error) {
	return s.run(ctx, TaskExpiredCodes, func() (int64, error) {
		return s.codes.DeleteExpired(ctx, s.now())
	})
}

// PurgeUnverifiedUsers removes users that never verified within the
// retention window, along with any codes they still hold.
func (s *CleanupService) PurgeUnverifiedUsers(ctx context.Context) (int64, error) {
	return s.run(ctx, TaskUnverifiedUsers, func() (int64, error) {
		deleted, err := s.users.DeleteUnverifiedBefore(ctx, s.now().Add(-s.unverifiedRetention))
		if err != nil {
			return 0, err
		}
		var errs []error
		for _, userID := range deleted {
			if _, err := s.codes.DeleteByUser(ctx, userID); err != nil {
				errs = append(errs, fmt.Errorf("delete codes of %s: %w", userID, err))
			}
		}
		return int64(len(deleted)), errors.Join(errs...)
	})
}

func (s *CleanupService) PurgeStaleOAuthAccounts(ctx context.Context) (int64, error) {
	return s.run(ctx, TaskStaleOAuth, func() (int64, error) {
		return s.users.DeleteStaleAccounts(ctx, s.now().Add(-s.oauthRetention))
	})
}

func (s *CleanupService) run(ctx context.Context, task Task, fn func() (int64, error)) (int64, error) {
	start := time.Now()
	deleted, err := fn()

	status := "success"
	if err != nil {
		status = "failure"
		err = fmt.Errorf("%s: %w", task, err)
		s.logger.ErrorContext(ctx, "auth cleanup failed", "task", string(task), "error", err)
		if s.metrics != nil {
			s.metrics.ReaperFailures.WithLabelValues(string(task)).Inc()
		}
	} else {
		s.logger.InfoContext(ctx, "auth cleanup completed",
			"task", string(task),
			"deleted", deleted,
			"duration", time.Since(start),
		)
	}
	if s.metrics != nil && deleted > 0 {
		s.metrics.ReaperDeleted.WithLabelValues(string(task)).Add(float64(deleted))
	}
	if s.auditPublisher != nil {
		s.auditPublisher.Emit(ctx, audit.Event{
			Timestamp: s.now().UTC(),
			Action:    audit.ActionReaperRun,
			Subject:   string(task),
			Attrs: map[string]string{
				"task":    string(task),
				"deleted": strconv.FormatInt(deleted, 10),
				"status":  status,
			},
		})
	}
	return deleted, err
}
