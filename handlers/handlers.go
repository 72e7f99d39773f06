package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"governance-project/app"
	"governance-project/chain"
	"governance-project/governor"
	"governance-project/ledger"
	"governance-project/logger"
	"governance-project/models"
	"governance-project/target"
	"governance-project/timelock"
)

// Handler contains the HTTP handlers for the governance API
type Handler struct {
	App *app.App
}

// NewHandler creates and returns a new Handler instance
func NewHandler(a *app.App) *Handler {
	return &Handler{App: a}
}

var errInvalidRequest = errors.New("invalid request")

// statusFor maps a domain error to an HTTP status. Order matters: a failed
// batch call wraps the target's own error, and an unknown operation on
// execute also reads as not ready.
var statusFor = []struct {
	err    error
	status int
}{
	{timelock.ErrBatchCallFailed, http.StatusConflict},
	{models.ErrUnauthorized, http.StatusForbidden},

	{governor.ErrUnknownProposal, http.StatusNotFound},
	{timelock.ErrUnknownOperation, http.StatusNotFound},
	{target.ErrUnknownTarget, http.StatusNotFound},

	{governor.ErrNotActive, http.StatusConflict},
	{governor.ErrNotSucceeded, http.StatusConflict},
	{governor.ErrNotQueued, http.StatusConflict},
	{governor.ErrNotCancelable, http.StatusConflict},
	{governor.ErrAlreadyVoted, http.StatusConflict},
	{governor.ErrAlreadyQueued, http.StatusConflict},
	{governor.ErrDuplicateProposal, http.StatusConflict},
	{timelock.ErrAlreadyScheduled, http.StatusConflict},
	{timelock.ErrAlreadyExecuted, http.StatusConflict},
	{timelock.ErrNotReady, http.StatusConflict},
	{timelock.ErrPredecessorNotDone, http.StatusConflict},
	{timelock.ErrNotPending, http.StatusConflict},

	{errInvalidRequest, http.StatusBadRequest},
	{governor.ErrZeroWeight, http.StatusBadRequest},
	{governor.ErrInvalidSupport, http.StatusBadRequest},
	{governor.ErrInvalidProposalLength, http.StatusBadRequest},
	{governor.ErrEmptyProposal, http.StatusBadRequest},
	{governor.ErrBelowThreshold, http.StatusBadRequest},
	{governor.ErrInvalidSettings, http.StatusBadRequest},
	{timelock.ErrInsufficientDelay, http.StatusBadRequest},
	{timelock.ErrEmptyBatch, http.StatusBadRequest},
	{timelock.ErrUnknownRole, http.StatusBadRequest},
	{ledger.ErrInvalidAmount, http.StatusBadRequest},
	{ledger.ErrFutureLookup, http.StatusBadRequest},
	{models.ErrInsufficientBalance, http.StatusBadRequest},
	{target.ErrInvalidCalldata, http.StatusBadRequest},
	{target.ErrNonPayable, http.StatusBadRequest},
	{chain.ErrTimeNotMonotonic, http.StatusBadRequest},
	{chain.ErrClockOverflow, http.StatusBadRequest},
	{timelock.ErrInvalidDelay, http.StatusBadRequest},
	{models.ErrValueOutOfRange, http.StatusBadRequest},
}

// StatusCode returns the HTTP status for err
func StatusCode(err error) int {
	for _, m := range statusFor {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// fail logs err under msg and writes it as a JSON error body
func fail(w http.ResponseWriter, msg string, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.Logger.Error(msg, zap.Error(err))
	} else {
		logger.Logger.Warn(msg, zap.Error(err), zap.Int("status", status))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}

func pathHash(r *http.Request, name string) (common.Hash, error) {
	raw := mux.Vars(r)[name]
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %s %q is not a 32-byte hex value", errInvalidRequest, name, raw)
	}
	return common.BytesToHash(b), nil
}

func pathAddress(r *http.Request, name string) (common.Address, error) {
	raw := mux.Vars(r)[name]
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %s %q is not an address", errInvalidRequest, name, raw)
	}
	return common.HexToAddress(raw), nil
}

func pathUint(r *http.Request, name string) (uint64, error) {
	raw := mux.Vars(r)[name]
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", errInvalidRequest, name, raw)
	}
	return n, nil
}
