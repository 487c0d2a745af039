package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/emitkithq/emitkit/internal/config"
	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/logger"
	"github.com/emitkithq/emitkit/internal/metrics"
)

const maxDrainBytes = 64 << 10

// HTTPDoer sends HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result summarizes one dispatch
type Result struct {
	Delivered int
	Failed    int
	Errors    []error
}

type Dispatcher struct {
	client         HTTPDoer
	userAgent      string
	timeout        time.Duration
	maxConcurrency int
	log            *zap.Logger
}

// NewHTTPClient returns the client used for webhook delivery. Redirects are
// never followed: a registered URL passed address validation, its redirect
// target did not, so a 3xx is reported as a failed delivery.
func NewHTTPClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// NewDispatcher creates a dispatcher. A nil client gets NewHTTPClient.
func NewDispatcher(cfg config.Webhook, client HTTPDoer, log *zap.Logger) *Dispatcher {
	if client == nil {
		client = NewHTTPClient()
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		client:         client,
		userAgent:      cfg.UserAgent,
		timeout:        timeout,
		maxConcurrency: cfg.MaxConcurrency,
		log:            log,
	}
}

// Dispatch posts event to every webhook in parallel. A failing webhook is
// recorded in the result and never affects the others; nothing is retried.
func (d *Dispatcher) Dispatch(ctx context.Context, webhooks []*domain.Webhook, event *domain.Event) Result {
	var result Result
	if len(webhooks) == 0 {
		return result
	}
	log := logger.FromContext(ctx, d.log)

	body, err := json.Marshal(NewPayload(event))
	if err != nil {
		result.Failed = len(webhooks)
		result.Errors = append(result.Errors, fmt.Errorf("failed to marshal webhook payload: %w", err))
		return result
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	if d.maxConcurrency > 0 {
		g.SetLimit(d.maxConcurrency)
	}

	for _, w := range webhooks {
		g.Go(func() error {
			err := d.send(ctx, w, body)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Errorf("webhook %s: %w", w.ID, err))
				log.Error("Webhook dispatch failed",
					zap.String("webhook_id", w.ID),
					zap.String("url", w.URL),
					zap.String("event_id", event.ID),
					zap.Error(err))
				return nil
			}
			result.Delivered++
			return nil
		})
	}
	_ = g.Wait()

	return result
}

func (d *Dispatcher) send(ctx context.Context, w *domain.Webhook, body []byte) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.userAgent)
	if w.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(w.Secret, body))
	}

	resp, err := d.client.Do(req)
	metrics.WebhookDeliveryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("webhook failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	metrics.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
	return nil
}
