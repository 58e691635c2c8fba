package handler

import (
	"net/http"
	"strconv"

	"github.com/mcoot/gamebank/internal/api/request"
	"github.com/mcoot/gamebank/internal/api/response"
	"github.com/mcoot/gamebank/internal/model"
	"github.com/mcoot/gamebank/internal/services/ledger"
	"github.com/mcoot/gamebank/internal/services/syncplan"
)

// SyncHandler handles incremental sync endpoints
type SyncHandler struct {
	ledger *ledger.Service
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(ledgerService *ledger.Service) *SyncHandler {
	return &SyncHandler{
		ledger: ledgerService,
	}
}

// Sync handles POST /sync
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req request.SyncRequest
	if err := decodeBody(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	known := make([]model.PlayerID, len(req.KnownPlayerIDs))
	for i, id := range req.KnownPlayerIDs {
		known[i] = model.PlayerID(id)
	}

	delta, err := h.ledger.Sync(r.Context(), syncplan.Request{
		Since:          model.Stamp(req.LastSyncTimestamp),
		KnownPlayerIDs: known,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SyncResponseFromDelta(delta))
}

// Changes handles GET /players/changes?lastCheck=
func (h *SyncHandler) Changes(w http.ResponseWriter, r *http.Request) {
	var since int64
	if raw := r.URL.Query().Get("lastCheck"); raw != "" {
		var err error
		if since, err = strconv.ParseInt(raw, 10, 64); err != nil {
			WriteError(w, NewInvalidRequestError("lastCheck must be an integer timestamp"))
			return
		}
	}

	has, watermark, err := h.ledger.HasChangesSince(r.Context(), model.Stamp(since))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ChangesResponse{
		HasChanges:      has,
		ServerTimestamp: int64(watermark),
	})
}
