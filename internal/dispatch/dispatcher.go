// Package dispatch merges campaign templates and hands the resulting
// messages to a provider transport.
//
// Each call is stateless given its inputs. A failure to send to one
// recipient is recorded and never stops the remaining sends. Nothing is
// retried.
package dispatch

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/mailmerge/internal/domain"
	"github.com/ignite/mailmerge/internal/merge"
	"github.com/ignite/mailmerge/internal/pkg/logger"
	"github.com/ignite/mailmerge/internal/transport"
)

// Transport is the part of transport.Selector the dispatcher needs.
type Transport interface {
	Validate(p domain.Provider, creds map[string]string) error
	Connect(ctx context.Context, p domain.Provider, creds map[string]string) (transport.Session, error)
}

// Dispatcher sends test messages and campaigns.
type Dispatcher struct {
	transport Transport
	workers   int
	testMsg   *testTemplates
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithWorkers sets how many sessions send a campaign in parallel. Values
// below 2 keep the sequential mode.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// New builds a Dispatcher. Test-message templates are parsed here so a bad
// template fails at start-up.
func New(t Transport, testSubject, testBody string, opts ...Option) (*Dispatcher, error) {
	tpl, err := parseTestTemplates(testSubject, testBody)
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{transport: t, workers: 1, testMsg: tpl}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// errNotScheduled marks a recipient whose send never started because the
// context ended first.
var errNotScheduled = errors.New("not scheduled")

// prepare runs the checks that must pass before any connection is opened.
// The returned config is a copy carrying the canonical provider name.
func (d *Dispatcher) prepare(cfg *domain.ProviderConfig) (*domain.ProviderConfig, string, error) {
	if cfg == nil || strings.TrimSpace(string(cfg.Provider)) == "" {
		return nil, "", domain.NewConfigError("no provider configured")
	}
	p, err := domain.ParseProvider(string(cfg.Provider))
	if err != nil {
		return nil, "", err
	}
	norm := *cfg
	norm.Provider = p

	sender, err := norm.SenderEmail()
	if err != nil {
		return nil, "", err
	}
	if err := d.transport.Validate(norm.Provider, norm.Credentials); err != nil {
		return nil, "", err
	}
	return &norm, sender, nil
}

// DispatchTest sends one fixed message to tm.To, or to the configured
// default_email when tm.To is empty. A transport failure is recorded in the
// result and also returned.
func (d *Dispatcher) DispatchTest(ctx context.Context, cfg *domain.ProviderConfig, tm domain.TestMessage) (*domain.DispatchResult, error) {
	cfg, sender, err := d.prepare(cfg)
	if err != nil {
		return nil, err
	}
	to := strings.TrimSpace(tm.To)
	if to == "" {
		to = strings.TrimSpace(cfg.DefaultEmail)
	}
	if to == "" {
		return nil, domain.NewConfigError("no default_email configured")
	}

	msg, err := d.testMsg.render(cfg.Provider, sender, to)
	if err != nil {
		return nil, err
	}

	result := &domain.DispatchResult{Attempted: 1, Failures: []domain.Failure{}}
	sess, err := d.transport.Connect(ctx, cfg.Provider, cfg.Credentials)
	if err != nil {
		result.Failures = append(result.Failures, domain.Failure{Recipient: to, Reason: err.Error()})
		logger.Warn("test email connect failed", "provider", cfg.Provider, "email", to, "error", err)
		return result, err
	}
	defer sess.Close()

	if err := sess.Send(ctx, msg); err != nil {
		result.Failures = append(result.Failures, domain.Failure{Recipient: to, Reason: err.Error()})
		logger.Warn("test email send failed", "provider", cfg.Provider, "email", to, "error", err)
		return result, err
	}
	result.Sent = 1
	logger.Info("test email sent", "provider", cfg.Provider, "email", to)
	return result, nil
}

// job is one addressable recipient, with its position in the input list.
type job struct {
	pos       int
	to        string
	recipient domain.Recipient
}

// DispatchCampaign sends one message per recipient. The body is merged per
// recipient; the subject is sent verbatim. Recipients without an email field
// are skipped and not counted as attempted.
//
// Once ctx is done no further sends are started. Recipients that were never
// handed to a session are left out of Attempted and Failures.
func (d *Dispatcher) DispatchCampaign(ctx context.Context, cfg *domain.ProviderConfig, c *domain.Campaign) (*domain.DispatchResult, error) {
	cfg, sender, err := d.prepare(cfg)
	if err != nil {
		return nil, err
	}

	result := &domain.DispatchResult{Failures: []domain.Failure{}}
	if c == nil {
		return result, nil
	}

	jobs := make([]job, 0, len(c.Recipients))
	for _, r := range c.Recipients {
		to, ok := r.Email()
		if !ok {
			result.Skipped++
			continue
		}
		jobs = append(jobs, job{pos: len(jobs), to: to, recipient: r})
	}

	outcomes := make([]error, len(jobs))
	for i := range outcomes {
		outcomes[i] = errNotScheduled
	}
	workers := d.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	if workers <= 1 {
		w := d.newWorker(cfg, sender, c)
		for _, j := range jobs {
			if ctx.Err() != nil {
				break
			}
			outcomes[j.pos] = w.send(ctx, j)
		}
		w.close()
	} else {
		d.runPool(ctx, workers, jobs, outcomes, func() *worker { return d.newWorker(cfg, sender, c) })
	}

	unscheduled := 0
	for i, err := range outcomes {
		if errors.Is(err, errNotScheduled) {
			unscheduled++
			continue
		}
		result.Attempted++
		if err != nil {
			result.Failures = append(result.Failures, domain.Failure{Recipient: jobs[i].to, Reason: err.Error()})
			continue
		}
		result.Sent++
	}

	logger.Info("campaign dispatch finished",
		"provider", cfg.Provider,
		"attempted", result.Attempted,
		"sent", result.Sent,
		"failed", len(result.Failures),
		"skipped", result.Skipped,
		"workers", workers,
	)
	if unscheduled > 0 {
		logger.Warn("campaign dispatch stopped early",
			"provider", cfg.Provider,
			"unscheduled", unscheduled,
			"error", ctx.Err(),
		)
	}
	return result, nil
}

// runPool fans jobs out to a bounded set of workers. Each worker owns its
// own session; outcomes are written by position so the caller can rebuild
// the input order.
func (d *Dispatcher) runPool(ctx context.Context, workers int, jobs []job, outcomes []error, newWorker func() *worker) {
	feed := make(chan job)
	var g errgroup.Group
	g.SetLimit(workers)

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			w := newWorker()
			defer w.close()
			for j := range feed {
				outcomes[j.pos] = w.send(ctx, j)
			}
			return nil
		})
	}
feed:
	for _, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		select {
		case feed <- j:
		case <-ctx.Done():
			break feed
		}
	}
	close(feed)
	_ = g.Wait()
}

// worker holds at most one open session and reconnects lazily after a
// session becomes unusable.
type worker struct {
	d        *Dispatcher
	cfg      *domain.ProviderConfig
	sender   string
	campaign *domain.Campaign
	sess     transport.Session
}

func (d *Dispatcher) newWorker(cfg *domain.ProviderConfig, sender string, c *domain.Campaign) *worker {
	return &worker{d: d, cfg: cfg, sender: sender, campaign: c}
}

func (w *worker) send(ctx context.Context, j job) error {
	msg := &domain.EmailMessage{
		From:     w.sender,
		To:       j.to,
		Subject:  w.campaign.Subject,
		HTMLBody: merge.Resolve(w.campaign.Body, j.recipient),
	}

	if w.sess == nil {
		sess, err := w.d.transport.Connect(ctx, w.cfg.Provider, w.cfg.Credentials)
		if err != nil {
			logger.Warn("campaign connect failed", "provider", w.cfg.Provider, "email", j.to, "error", err)
			return err
		}
		w.sess = sess
	}

	if err := w.sess.Send(ctx, msg); err != nil {
		logger.Warn("campaign send failed", "provider", w.cfg.Provider, "email", j.to, "error", err)
		if !w.sess.Usable() {
			w.close()
		}
		return err
	}
	logger.Debug("campaign send ok", "email", j.to)
	return nil
}

func (w *worker) close() {
	if w.sess == nil {
		return
	}
	if err := w.sess.Close(); err != nil {
		logger.Debug("session close failed", "error", err)
	}
	w.sess = nil
}
