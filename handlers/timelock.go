package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"governance-project/models"
	"governance-project/timelock"
)

// ScheduleRequest queues Calls directly in the timelock. Delay is a Go
// duration string and defaults to the minimum delay.
type ScheduleRequest struct {
	From        common.Address `json:"from"`
	Calls       []models.Call  `json:"calls"`
	Predecessor common.Hash    `json:"predecessor"`
	Salt        common.Hash    `json:"salt"`
	Delay       string         `json:"delay"`
}

type ExecuteOperationRequest struct {
	From        common.Address `json:"from"`
	Calls       []models.Call  `json:"calls"`
	Predecessor common.Hash    `json:"predecessor"`
	Salt        common.Hash    `json:"salt"`
}

type CancelOperationRequest struct {
	From common.Address `json:"from"`
	ID   common.Hash    `json:"id"`
}

type RoleRequest struct {
	From    common.Address `json:"from"`
	Role    models.Role    `json:"role"`
	Account common.Address `json:"account"`
}

// Schedule handles POST requests scheduling a timelock operation
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := decode(r, &req); err != nil {
		fail(w, "Failed to decode schedule request", err)
		return
	}

	delay, err := h.App.Timelock.MinDelay(r.Context())
	if err != nil {
		fail(w, "Failed to read min delay", err)
		return
	}
	if req.Delay != "" {
		if delay, err = time.ParseDuration(req.Delay); err != nil {
			fail(w, "Invalid delay", fmt.Errorf("%w: delay: %v", errInvalidRequest, err))
			return
		}
	}

	id, err := h.App.Timelock.ScheduleBatch(r.Context(), req.From, req.Calls, req.Predecessor, req.Salt, delay)
	if err != nil {
		fail(w, "Failed to schedule operation", err)
		return
	}
	ready, err := h.App.Timelock.Timestamp(r.Context(), id)
	if err != nil {
		fail(w, "Failed to read operation timestamp", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":      "Operation scheduled successfully",
		"operation_id": id,
		"ready_at":     ready,
	})
}

// ExecuteOperation handles POST requests executing a ready timelock operation
func (h *Handler) ExecuteOperation(w http.ResponseWriter, r *http.Request) {
	var req ExecuteOperationRequest
	if err := decode(r, &req); err != nil {
		fail(w, "Failed to decode execute request", err)
		return
	}
	if err := h.App.Timelock.ExecuteBatch(r.Context(), req.From, req.Calls, req.Predecessor, req.Salt); err != nil {
		fail(w, "Failed to execute operation", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Operation executed successfully",
		"operation_id": h.App.Timelock.HashOperationBatch(req.Calls, req.Predecessor, req.Salt),
	})
}

// CancelOperation handles POST requests canceling a pending operation
func (h *Handler) CancelOperation(w http.ResponseWriter, r *http.Request) {
	var req CancelOperationRequest
	if err := decode(r, &req); err != nil {
		fail(w, "Failed to decode cancel request", err)
		return
	}
	if err := h.App.Timelock.Cancel(r.Context(), req.From, req.ID); err != nil {
		fail(w, "Failed to cancel operation", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Operation canceled successfully",
		"operation_id": req.ID,
	})
}

// GetOperation handles GET requests for an operation and its state
func (h *Handler) GetOperation(w http.ResponseWriter, r *http.Request) {
	id, err := pathHash(r, "id")
	if err != nil {
		fail(w, "Invalid operation id", err)
		return
	}
	op, err := h.App.Timelock.Operation(r.Context(), id)
	if err != nil {
		fail(w, "Failed to get operation", err)
		return
	}
	if op == nil {
		fail(w, "Failed to get operation", fmt.Errorf("%w: %s", timelock.ErrUnknownOperation, id.Hex()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":        id,
		"state":     op.StateAt(h.App.Chain.Head().Time),
		"operation": op,
	})
}

// GrantRole handles POST requests granting a timelock role
func (h *Handler) GrantRole(w http.ResponseWriter, r *http.Request) {
	h.updateRole(w, r, "grant")
}

// RevokeRole handles POST requests revoking a timelock role
func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	h.updateRole(w, r, "revoke")
}

// RenounceRole handles POST requests dropping the caller's own role
func (h *Handler) RenounceRole(w http.ResponseWriter, r *http.Request) {
	h.updateRole(w, r, "renounce")
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request, action string) {
	var req RoleRequest
	if err := decode(r, &req); err != nil {
		fail(w, "Failed to decode role request", err)
		return
	}

	var err error
	switch action {
	case "grant":
		err = h.App.Timelock.GrantRole(r.Context(), req.From, req.Role, req.Account)
	case "revoke":
		err = h.App.Timelock.RevokeRole(r.Context(), req.From, req.Role, req.Account)
	default:
		err = h.App.Timelock.RenounceRole(r.Context(), req.From, req.Role, req.Account)
	}
	if err != nil {
		fail(w, "Failed to "+action+" role", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Role updated successfully",
		"role":    req.Role,
		"account": req.Account,
		"action":  action,
	})
}

// GetRoles handles GET requests for the role table
func (h *Handler) GetRoles(w http.ResponseWriter, r *http.Request) {
	table, err := h.App.Timelock.Roles(r.Context())
	if err != nil {
		fail(w, "Failed to get roles", err)
		return
	}
	delay, err := h.App.Timelock.MinDelay(r.Context())
	if err != nil {
		fail(w, "Failed to read min delay", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"timelock":  h.App.Addresses.Timelock,
		"min_delay": delay.String(),
		"roles":     table,
	})
}
