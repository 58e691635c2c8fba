package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcoot/gamebank/internal/api/request"
	"github.com/mcoot/gamebank/internal/api/response"
	"github.com/mcoot/gamebank/internal/model"
	"github.com/mcoot/gamebank/internal/services/ledger"
)

// PlayerHandler handles player and balance endpoints
type PlayerHandler struct {
	ledger *ledger.Service
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(ledgerService *ledger.Service) *PlayerHandler {
	return &PlayerHandler{
		ledger: ledgerService,
	}
}

// List handles GET /players
func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
	players, err := h.ledger.ListPlayers(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PlayersFromModel(players))
}

// Create handles POST /players
func (h *PlayerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreatePlayerRequest
	if err := decodeBody(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	player, err := h.ledger.CreatePlayer(r.Context(), req.Name)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.PlayerFromModel(player))
}

// Get handles GET /players/{id}
func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	player, err := h.ledger.GetPlayer(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PlayerFromModel(player))
}

// Update handles PUT /players/{id}
func (h *PlayerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req request.UpdatePlayerRequest
	if err := decodeBody(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	player, err := h.ledger.UpdatePlayer(r.Context(), id, req.Name, req.Balance)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PlayerFromModel(player))
}

// Delete handles DELETE /players/{id}
func (h *PlayerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	if err := h.ledger.DeletePlayer(r.Context(), id); err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SuccessResponse{Success: true})
}

// AddMoney handles POST /players/{id}/add
func (h *PlayerHandler) AddMoney(w http.ResponseWriter, r *http.Request) {
	h.changeBalance(w, r, h.ledger.AddMoney)
}

// SubtractMoney handles POST /players/{id}/subtract
func (h *PlayerHandler) SubtractMoney(w http.ResponseWriter, r *http.Request) {
	h.changeBalance(w, r, h.ledger.SubtractMoney)
}

// SetBalance handles PUT /players/{id}/balance
func (h *PlayerHandler) SetBalance(w http.ResponseWriter, r *http.Request) {
	h.changeBalance(w, r, h.ledger.SetBalance)
}

type balanceChange func(ctx context.Context, id model.PlayerID, amount int64, description string) (model.Player, model.Transaction, error)

func (h *PlayerHandler) changeBalance(w http.ResponseWriter, r *http.Request, change balanceChange) {
	id, err := playerID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req request.AmountRequest
	if err := decodeBody(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.Amount == nil {
		WriteError(w, NewInvalidRequestError("amount is required"))
		return
	}

	player, tx, err := change(r.Context(), id, *req.Amount, req.Description)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.BalanceResponse{
		Success:     true,
		Player:      response.PlayerFromModel(player),
		Transaction: response.TransactionFromModel(tx),
	})
}

// History handles GET /players/{id}/history?limit=
func (h *PlayerHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			WriteError(w, NewInvalidRequestError("limit must be a non-negative integer"))
			return
		}
	}

	history, err := h.ledger.History(r.Context(), id, limit)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.TransactionsFromModel(history))
}

// playerID parses the {id} route variable
func playerID(r *http.Request) (model.PlayerID, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, NewInvalidRequestError("invalid player id")
	}
	return model.PlayerID(id), nil
}
