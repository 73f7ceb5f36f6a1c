package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gallery/internal/domain"
	"gallery/internal/middleware"
)

type exportRequestBody struct {
	AssetIDs          []string `json:"assetIds"`
	DistributionToken string   `json:"distributionToken"`
	OutputProfileID   string   `json:"outputProfileId"`
}

// ExportCollection streams a zip archive of the requested assets. All
// eligibility checks run before the first response byte; once streaming has
// begun the status code is committed and failures surface inside the
// archive's report entry instead.
func (a *App) ExportCollection(w http.ResponseWriter, r *http.Request) {
	var body exportRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	req := domain.ExportRequest{
		CollectionID:      chi.URLParam(r, "id"),
		AssetIDs:          body.AssetIDs,
		DistributionToken: body.DistributionToken,
		OutputProfileID:   body.OutputProfileID,
	}

	plan, err := a.Exports.Prepare(r.Context(), req, middleware.ClientIDFromContext(r.Context()), clientIP(r))
	if err != nil {
		status, code, message := exportRejection(err)
		if status == http.StatusInternalServerError {
			a.Logger.Error().Err(err).Str("collection", req.CollectionID).Msg("export preparation failed")
		}
		a.error(w, status, code, message)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", plan.ArchiveFilename()))
	w.Header().Set("Cache-Control", "no-store")

	if err := a.Exports.Stream(r.Context(), plan, w); err != nil {
		// Headers are already on the wire; the truncated archive is the
		// only signal the client gets.
		a.Logger.Error().Err(err).Str("collection", req.CollectionID).Msg("export stream aborted")
	}
}

// exportRejection maps a preparation error onto its HTTP status and stable
// error code.
func exportRejection(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request", "between 1 and 100 asset ids are required"
	case errors.Is(err, domain.ErrInvalidProfile):
		return http.StatusBadRequest, "invalid_profile", "unknown output profile"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", "collection not found"
	case errors.Is(err, domain.ErrExpired):
		return http.StatusForbidden, "expired", "collection has expired"
	case errors.Is(err, domain.ErrNotReady):
		return http.StatusForbidden, "not_ready", "collection is not published"
	case errors.Is(err, domain.ErrDownloadsDisabled):
		return http.StatusForbidden, "downloads_disabled", "downloads are disabled for this collection"
	case errors.Is(err, domain.ErrPaymentRequired):
		return http.StatusPaymentRequired, "payment_required", "collection requires payment before download"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized", "not authorized for this collection"
	case errors.Is(err, domain.ErrAssetsNotFound):
		return http.StatusBadRequest, "assets_not_found", "one or more assets no longer exist"
	default:
		return http.StatusInternalServerError, "internal", "export failed"
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
