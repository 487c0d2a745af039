package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/logger"
	"github.com/emitkithq/emitkit/internal/metrics"
	"github.com/emitkithq/emitkit/internal/repository"
)

// Notification is the JSON payload shown by the service worker
type Notification struct {
	Title string         `json:"title"`
	Body  string         `json:"body,omitempty"`
	Icon  string         `json:"icon,omitempty"`
	Badge string         `json:"badge,omitempty"`
	Tag   string         `json:"tag,omitempty"`
	URL   string         `json:"url,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// UserResult counts deliveries for one user
type UserResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// Result aggregates a delivery run. Expired subscriptions are removed and
// counted in neither Success nor Failed.
type Result struct {
	Success int
	Failed  int
	Expired int
	ByUser  map[string]UserResult
}

type Service struct {
	subscriptions  repository.PushSubscriptionRepository
	sender         Sender
	configured     bool
	maxConcurrency int
	log            *zap.Logger
}

// NewService creates a push service. When configured is false every send
// returns an empty result.
func NewService(subscriptions repository.PushSubscriptionRepository, sender Sender, configured bool, maxConcurrency int, log *zap.Logger) *Service {
	if !configured {
		log.Warn("VAPID keys not configured - push notifications disabled")
	}
	return &Service{
		subscriptions:  subscriptions,
		sender:         sender,
		configured:     configured,
		maxConcurrency: maxConcurrency,
		log:            log,
	}
}

func (s *Service) SendToUser(ctx context.Context, userID string, n Notification) (Result, error) {
	return s.SendToUsers(ctx, []string{userID}, n)
}

// SendToUsers delivers to every device of every user.
func (s *Service) SendToUsers(ctx context.Context, userIDs []string, n Notification) (Result, error) {
	if !s.configured || len(userIDs) == 0 {
		return emptyResult(), nil
	}

	subs, err := s.subscriptions.ListByUsers(ctx, userIDs)
	if err != nil {
		return emptyResult(), fmt.Errorf("failed to list push subscriptions: %w", err)
	}
	return s.deliver(ctx, subs, n)
}

// SendToChannels delivers to the organization's subscriptions that follow
// any of channelIDs, or follow every channel.
func (s *Service) SendToChannels(ctx context.Context, organizationID string, channelIDs []string, n Notification) (Result, error) {
	if !s.configured {
		return emptyResult(), nil
	}

	all, err := s.subscriptions.ListByOrganization(ctx, organizationID)
	if err != nil {
		return emptyResult(), fmt.Errorf("failed to list push subscriptions: %w", err)
	}

	matched := make([]*domain.PushSubscription, 0, len(all))
	for _, sub := range all {
		if sub.MatchesAny(channelIDs) {
			matched = append(matched, sub)
		}
	}

	logger.FromContext(ctx, s.log).Info("Sending push notifications to channels",
		zap.Strings("channel_ids", channelIDs),
		zap.Int("subscriptions", len(matched)),
		zap.String("title", n.Title))

	return s.deliver(ctx, matched, n)
}

func (s *Service) deliver(ctx context.Context, subs []*domain.PushSubscription, n Notification) (Result, error) {
	result := emptyResult()
	if len(subs) == 0 {
		return result, nil
	}
	log := logger.FromContext(ctx, s.log)

	payload, err := json.Marshal(n)
	if err != nil {
		return result, fmt.Errorf("failed to marshal push payload: %w", err)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}

	for _, sub := range subs {
		g.Go(func() error {
			outcome := s.deliverOne(ctx, sub, payload)

			mu.Lock()
			defer mu.Unlock()
			user := result.ByUser[sub.UserID]
			switch outcome {
			case outcomeSuccess:
				result.Success++
				user.Success++
			case outcomeFailed:
				result.Failed++
				user.Failed++
			case outcomeExpired:
				result.Expired++
			}
			result.ByUser[sub.UserID] = user
			return nil
		})
	}
	_ = g.Wait()

	log.Info("Push notifications delivered",
		zap.Int("success", result.Success),
		zap.Int("failed", result.Failed),
		zap.Int("expired", result.Expired))

	return result, nil
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailed
	outcomeExpired
)

func (s *Service) deliverOne(ctx context.Context, sub *domain.PushSubscription, payload []byte) outcome {
	log := logger.FromContext(ctx, s.log).With(
		zap.String("subscription_id", sub.ID),
		zap.String("user_id", sub.UserID))

	status, err := s.sender.Send(ctx, sub, payload)
	switch {
	case status == http.StatusGone || status == http.StatusNotFound:
		log.Info("Removing expired push subscription", zap.Int("status", status))
		if err := s.subscriptions.DeleteByID(ctx, sub.ID); err != nil {
			log.Error("Failed to delete expired push subscription", zap.Error(err))
		}
		metrics.PushDeliveriesTotal.WithLabelValues("expired").Inc()
		return outcomeExpired
	case err != nil:
		log.Error("Error sending push notification", zap.Error(err))
		metrics.PushDeliveriesTotal.WithLabelValues("failed").Inc()
		return outcomeFailed
	case status < 200 || status > 299:
		log.Error("Push service rejected notification", zap.Int("status", status))
		metrics.PushDeliveriesTotal.WithLabelValues("failed").Inc()
		return outcomeFailed
	}

	metrics.PushDeliveriesTotal.WithLabelValues("success").Inc()
	return outcomeSuccess
}

func emptyResult() Result {
	return Result{ByUser: map[string]UserResult{}}
}
