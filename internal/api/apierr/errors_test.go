package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/gamebank/internal/model"
	"github.com/mcoot/gamebank/internal/storage"
)

func TestWriteErrorMapsDomainErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"validation", model.ErrEmptyName, http.StatusBadRequest, CodeInvalidRequest, "player name is required"},
		{"not found", model.ErrPlayerNotFound, http.StatusNotFound, CodePlayerNotFound, "Player not found"},
		{"wrapped not found", fmt.Errorf("lookup: %w", model.ErrPlayerNotFound), http.StatusNotFound, CodePlayerNotFound, "Player not found"},
		{"insufficient funds", model.ErrInsufficientFunds, http.StatusConflict, CodeInsufficientFunds, "Insufficient funds"},
		{"conflict", storage.ErrConflict, http.StatusServiceUnavailable, CodeConflict, "Ledger is busy, retry the request"},
		{"invalid request", NewInvalidRequestError("bad body"), http.StatusBadRequest, CodeInvalidRequest, "bad body"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, CodeInternalError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteError(rr, tt.err)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.message, resp.Error.Message)
		})
	}
}

func TestRoutingErrors(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, toHTTPError(NewNotFoundError()).status)
	assert.Equal(t, http.StatusMethodNotAllowed, toHTTPError(NewMethodNotAllowedError()).status)
	assert.Equal(t, http.StatusInternalServerError, toHTTPError(NewInternalError()).status)
}
