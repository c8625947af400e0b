// Package api exposes provider settings, campaign management and dispatch
// over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ignite/mailmerge/internal/domain"
	"github.com/ignite/mailmerge/internal/pkg/distlock"
	"github.com/ignite/mailmerge/internal/pkg/httputil"
	"github.com/ignite/mailmerge/internal/pkg/logger"
)

// ProviderRepository persists the provider settings document.
type ProviderRepository interface {
	Load(ctx context.Context) (*domain.ProviderConfig, error)
	Save(ctx context.Context, cfg *domain.ProviderConfig) error
}

// CampaignRepository persists the campaign document.
type CampaignRepository interface {
	Load(ctx context.Context) (*domain.Campaign, error)
	Save(ctx context.Context, c *domain.Campaign) error
}

// Dispatcher sends test and campaign mail.
type Dispatcher interface {
	DispatchTest(ctx context.Context, cfg *domain.ProviderConfig, tm domain.TestMessage) (*domain.DispatchResult, error)
	DispatchCampaign(ctx context.Context, cfg *domain.ProviderConfig, c *domain.Campaign) (*domain.DispatchResult, error)
}

// Handlers holds the dependencies of every route.
type Handlers struct {
	providers  ProviderRepository
	campaigns  CampaignRepository
	dispatcher Dispatcher
	newLock    func() distlock.DistLock
}

// NewHandlers wires the handlers. newLock returns a fresh lock guarding
// campaign dispatch; each request gets its own instance.
func NewHandlers(providers ProviderRepository, campaigns CampaignRepository, d Dispatcher, newLock func() distlock.DistLock) *Handlers {
	return &Handlers{
		providers:  providers,
		campaigns:  campaigns,
		dispatcher: d,
		newLock:    newLock,
	}
}

// HealthCheck reports liveness.
//
//	GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

// loadProvider returns the stored settings, or writes a 400 when none exist.
func (h *Handlers) loadProvider(w http.ResponseWriter, r *http.Request) (*domain.ProviderConfig, bool) {
	cfg, err := h.providers.Load(r.Context())
	if errors.Is(err, domain.ErrNotFound) {
		httputil.BadRequest(w, "No email provider configured")
		return nil, false
	}
	if err != nil {
		httputil.InternalError(w, err)
		return nil, false
	}
	return cfg, true
}

// writeDispatchError maps a dispatch failure to a status code. Config
// problems are the caller's to fix; transport failures are upstream.
func writeDispatchError(w http.ResponseWriter, err error, result *domain.DispatchResult) {
	var authErr *domain.AuthError
	var connErr *domain.ConnectError
	var sendErr *domain.SendError
	switch {
	case domain.IsConfigError(err):
		httputil.BadRequest(w, err.Error())
	case errors.As(err, &authErr), errors.As(err, &connErr), errors.As(err, &sendErr):
		httputil.ErrorWithResult(w, http.StatusBadGateway, err.Error(), result)
	default:
		httputil.InternalError(w, err)
	}
}

func writeStoreError(w http.ResponseWriter, err error, what string) {
	logger.Error("store failure", "document", what, "error", err)
	httputil.InternalError(w, err)
}
