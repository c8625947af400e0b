package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ignite/mailmerge/internal/domain"
	"github.com/ignite/mailmerge/internal/pkg/httputil"
	"github.com/ignite/mailmerge/internal/pkg/logger"
)

// GetProviderSettings returns the stored settings, or {} before the first save.
//
//	GET /provider/settings
func (h *Handlers) GetProviderSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.providers.Load(r.Context())
	if errors.Is(err, domain.ErrNotFound) {
		httputil.OK(w, map[string]any{})
		return
	}
	if err != nil {
		writeStoreError(w, err, "provider")
		return
	}
	httputil.OK(w, cfg)
}

// SaveProviderSettings overwrites the settings wholesale. The provider id is
// normalised when it is recognised; nothing else is checked here.
//
//	POST /provider/settings
func (h *Handlers) SaveProviderSettings(w http.ResponseWriter, r *http.Request) {
	var cfg domain.ProviderConfig
	if !httputil.Decode(w, r, &cfg) {
		return
	}
	if p, err := domain.ParseProvider(string(cfg.Provider)); err == nil {
		cfg.Provider = p
	}
	h.saveProvider(w, r, &cfg)
}

// SaveProvider is SaveProviderSettings with the provider id required.
//
//	POST /provider/save
func (h *Handlers) SaveProvider(w http.ResponseWriter, r *http.Request) {
	var cfg domain.ProviderConfig
	if !httputil.Decode(w, r, &cfg) {
		return
	}
	if err := cfg.Validate(); err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			httputil.BadRequest(w, vErr.Msg)
			return
		}
		httputil.BadRequest(w, err.Error())
		return
	}
	h.saveProvider(w, r, &cfg)
}

func (h *Handlers) saveProvider(w http.ResponseWriter, r *http.Request, cfg *domain.ProviderConfig) {
	if cfg.Credentials == nil {
		cfg.Credentials = map[string]string{}
	}
	if err := h.providers.Save(r.Context(), cfg); err != nil {
		writeStoreError(w, err, "provider")
		return
	}
	logger.Info("provider settings saved", "provider", cfg.Provider, "missing", strings.Join(cfg.MissingCredentials(), ","))
	logger.Debug("provider credentials stored", "provider", cfg.Provider, "credentials", logger.RedactCredentials(cfg.Credentials))
	httputil.Message(w, "Settings saved successfully", nil)
}

// TestProvider sends one fixed message through the stored provider, to
// test_email when given and default_email otherwise.
//
//	POST /provider/test
func (h *Handlers) TestProvider(w http.ResponseWriter, r *http.Request) {
	var tm domain.TestMessage
	if !httputil.DecodeOptional(w, r, &tm) {
		return
	}
	cfg, ok := h.loadProvider(w, r)
	if !ok {
		return
	}

	result, err := h.dispatcher.DispatchTest(r.Context(), cfg, tm)
	if err != nil {
		writeDispatchError(w, err, result)
		return
	}

	to := strings.TrimSpace(tm.To)
	if to == "" {
		to = strings.TrimSpace(cfg.DefaultEmail)
	}
	httputil.Message(w, "Test email sent to "+to, result)
}
