package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ignite/mailmerge/internal/domain"
	"github.com/ignite/mailmerge/internal/merge"
	"github.com/ignite/mailmerge/internal/pkg/distlock"
	"github.com/ignite/mailmerge/internal/pkg/httputil"
	"github.com/ignite/mailmerge/internal/pkg/logger"
	"github.com/ignite/mailmerge/internal/recipients"
)

// maxUploadSize bounds the multipart form held in memory.
const maxUploadSize = 10 << 20

// CampaignSaved is the response to a campaign save or upload.
type CampaignSaved struct {
	Message               string   `json:"message"`
	Recipients            int      `json:"recipients"`
	Skipped               int      `json:"skipped,omitempty"`
	Headers               []string `json:"headers,omitempty"`
	UnmatchedPlaceholders []string `json:"unmatched_placeholders"`
}

// GetCampaign returns the stored campaign.
//
//	GET /campaign
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Load(r.Context())
	if errors.Is(err, domain.ErrNotFound) {
		httputil.NotFound(w, "No campaign found")
		return
	}
	if err != nil {
		writeStoreError(w, err, "campaign")
		return
	}
	httputil.OK(w, c)
}

// SaveCampaign validates and overwrites the campaign.
//
//	POST /campaign
func (h *Handlers) SaveCampaign(w http.ResponseWriter, r *http.Request) {
	var c domain.Campaign
	if !httputil.Decode(w, r, &c) {
		return
	}
	h.storeCampaign(r.Context(), w, &c, CampaignSaved{})
}

// UploadCampaign builds the campaign from a CSV recipient file plus the
// subject and body form fields.
//
//	POST /campaign/upload
func (h *Handlers) UploadCampaign(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httputil.BadRequest(w, "invalid multipart form: "+err.Error())
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "file is required")
		return
	}
	defer file.Close()

	parsed, err := recipients.Parse(file)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	c := &domain.Campaign{
		Subject:    r.FormValue("subject"),
		Body:       r.FormValue("body"),
		Recipients: parsed.Recipients,
	}
	h.storeCampaign(r.Context(), w, c, CampaignSaved{
		Skipped: parsed.Skipped,
		Headers: parsed.Headers,
	})
}

func (h *Handlers) storeCampaign(ctx context.Context, w http.ResponseWriter, c *domain.Campaign, resp CampaignSaved) {
	if err := c.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := h.campaigns.Save(ctx, c); err != nil {
		writeStoreError(w, err, "campaign")
		return
	}

	resp.Message = "Campaign saved successfully"
	resp.Recipients = len(c.Recipients)
	resp.UnmatchedPlaceholders = merge.Unmatched(c.Body, columns(c.Recipients))
	if resp.UnmatchedPlaceholders == nil {
		resp.UnmatchedPlaceholders = []string{}
	}
	logger.Info("campaign saved", "recipients", resp.Recipients, "skipped", resp.Skipped,
		"unmatched", len(resp.UnmatchedPlaceholders))
	httputil.OK(w, resp)
}

// columns is the union of recipient keys, in first-seen order.
func columns(rs []domain.Recipient) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rs {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// SendCampaign dispatches the stored campaign through the stored provider.
// Only one dispatch runs at a time; a second caller gets 409. The send is
// detached from the request so a client disconnect does not cut it short.
//
//	POST /campaign/send
func (h *Handlers) SendCampaign(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.loadProvider(w, r)
	if !ok {
		return
	}
	c, err := h.campaigns.Load(r.Context())
	if errors.Is(err, domain.ErrNotFound) {
		httputil.NotFound(w, "No campaign found")
		return
	}
	if err != nil {
		writeStoreError(w, err, "campaign")
		return
	}

	lock := h.newLock()
	acquired, err := lock.Acquire(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if !acquired {
		httputil.Conflict(w, "A campaign dispatch is already running")
		return
	}
	ctx := context.WithoutCancel(r.Context())
	defer func() {
		if err := lock.Release(ctx); err != nil {
			logger.Warn("dispatch lock release failed", "error", err)
		}
	}()
	stopRenew := distlock.KeepAlive(ctx, lock)
	defer stopRenew()

	result, err := h.dispatcher.DispatchCampaign(ctx, cfg, c)
	if err != nil {
		writeDispatchError(w, err, result)
		return
	}
	logger.Info("campaign dispatched", "attempted", result.Attempted, "sent", result.Sent,
		"failed", result.Failed(), "skipped", result.Skipped)
	httputil.Message(w, result.Summary(), result)
}
