// Package retention hard-deletes soft-deleted projects once their
// organization's retention period has passed.
package retention

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/config"
	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/metrics"
)

// Result totals one sweep
type Result struct {
	ProjectsDeleted int
	ProjectsFailed  int
	ChannelsDeleted int64
	WebhooksDeleted int64
	APIKeysDeleted  int64
}

type Sweeper struct {
	projects ProjectStore
	events   EventPurger
	cfg      config.Retention
	now      func() time.Time
	log      *zap.Logger
}

func NewSweeper(projects ProjectStore, events EventPurger, cfg config.Retention, log *zap.Logger) *Sweeper {
	return &Sweeper{
		projects: projects,
		events:   events,
		cfg:      cfg,
		now:      time.Now,
		log:      log,
	}
}

// Cutoffs maps every tier that expires to the deletion time before which its
// projects are purged. Unlimited projects never appear.
func (s *Sweeper) Cutoffs() map[domain.RetentionTier]time.Time {
	now := s.now().UTC()
	return map[domain.RetentionTier]time.Time{
		domain.RetentionBasic:   now.AddDate(0, 0, -s.cfg.BasicDays),
		domain.RetentionPremium: now.AddDate(0, 0, -s.cfg.PremiumDays),
	}
}

// Run sweeps every expiring tier. A project that fails to purge is logged and
// skipped; it stays soft-deleted and is picked up again by the next sweep.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	var result Result
	cutoffs := s.Cutoffs()

	for _, tier := range []domain.RetentionTier{domain.RetentionBasic, domain.RetentionPremium} {
		cutoff := cutoffs[tier]
		projects, err := s.projects.ListPurgeable(ctx, tier, cutoff)
		if err != nil {
			return result, fmt.Errorf("failed to list purgeable %s projects: %w", tier, err)
		}

		s.log.Info("Found projects eligible for deletion",
			zap.String("tier", string(tier)),
			zap.Time("cutoff", cutoff),
			zap.Int("count", len(projects)),
			zap.Bool("dry_run", s.cfg.DryRun))

		for _, p := range projects {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			s.purgeProject(ctx, p, &result)
		}
	}

	s.log.Info("Retention sweep completed",
		zap.Int("projects_deleted", result.ProjectsDeleted),
		zap.Int("projects_failed", result.ProjectsFailed),
		zap.Int64("channels_deleted", result.ChannelsDeleted),
		zap.Int64("webhooks_deleted", result.WebhooksDeleted),
		zap.Int64("api_keys_deleted", result.APIKeysDeleted))

	return result, nil
}

// purgeProject drops the events before the directory rows so a failure
// leaves the project listed for the next sweep.
func (s *Sweeper) purgeProject(ctx context.Context, p *domain.Project, result *Result) {
	log := s.log.With(
		zap.String("project_id", p.ID),
		zap.String("organization_id", p.OrganizationID))

	if s.cfg.DryRun {
		log.Info("Would delete project")
		result.ProjectsDeleted++
		return
	}

	if err := s.events.DeleteByProject(ctx, p.OrganizationID, p.ID); err != nil {
		log.Error("Failed to delete project events", zap.Error(err))
		result.ProjectsFailed++
		return
	}

	counts, err := s.projects.Purge(ctx, p.ID)
	if err != nil {
		log.Error("Failed to delete project", zap.Error(err))
		result.ProjectsFailed++
		return
	}

	result.ProjectsDeleted++
	result.ChannelsDeleted += counts.Channels
	result.WebhooksDeleted += counts.Webhooks
	result.APIKeysDeleted += counts.APIKeys

	metrics.RetentionDeletionsTotal.WithLabelValues("project").Inc()
	metrics.RetentionDeletionsTotal.WithLabelValues("channel").Add(float64(counts.Channels))
	metrics.RetentionDeletionsTotal.WithLabelValues("webhook").Add(float64(counts.Webhooks))
	metrics.RetentionDeletionsTotal.WithLabelValues("api_key").Add(float64(counts.APIKeys))

	log.Info("Project permanently deleted",
		zap.Int64("channels_deleted", counts.Channels),
		zap.Int64("webhooks_deleted", counts.Webhooks),
		zap.Int64("api_keys_deleted", counts.APIKeys))
}
