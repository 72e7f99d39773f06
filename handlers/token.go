package handlers

import (
	"fmt"
	"math"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type MintRequest struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

type TransferRequest struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

type DelegateRequest struct {
	From      common.Address `json:"from"`
	Delegatee common.Address `json:"delegatee"`
}

type StoreRequest struct {
	From  common.Address `json:"from"`
	Value *big.Int       `json:"value"`
}

// MineRequest advances the chain by Blocks blocks, or by one block Seconds
// later when Seconds is set
type MineRequest struct {
	Blocks  uint64 `json:"blocks"`
	Seconds int64  `json:"seconds"`
}

// Mint handles POST requests minting tokens, deployer only
func (h *Handler) Mint(w http.ResponseWriter, r *http.Request) {
	var req MintRequest
	if err := decode(r, &req); err != nil {
		fail(w, "Failed to decode mint request", err)
		return
	}
	if err := h.App.Token.Mint(r.Context(), req.From, req.To, req.Amount); err != nil {
		fail(w, "Failed to mint", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Tokens minted successfully",
		"to":      req.To,
		"amount":  req.Amount,
	})
}

// Transfer handles POST requests moving tokens between holders
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := decode(r, &req); err != nil {
		fail(w, "Failed to decode transfer request", err)
		return
	}
	if err := h.App.Token.Transfer(r.Context(), req.From, req.To, req.Amount); err != nil {
		fail(w, "Failed to transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Tokens transferred successfully",
		"from":    req.From,
		"to":      req.To,
		"amount":  req.Amount,
	})
}

// Delegate handles POST requests delegating voting power
func (h *Handler) Delegate(w http.ResponseWriter, r *http.Request) {
	var req DelegateRequest
	if err := decode(r, &req); err != nil {
		fail(w, "Failed to decode delegate request", err)
		return
	}
	if err := h.App.Token.Delegate(r.Context(), req.From, req.Delegatee); err != nil {
		fail(w, "Failed to delegate", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Votes delegated successfully",
		"delegator": req.From,
		"delegatee": req.Delegatee,
	})
}

// GetAccount handles GET requests for a token holder
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	address, err := pathAddress(r, "account")
	if err != nil {
		fail(w, "Invalid account", err)
		return
	}
	account, err := h.App.Token.Account(r.Context(), address)
	if err != nil {
		fail(w, "Failed to get account", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address":  account.Address,
		"balance":  account.Balance,
		"delegate": account.Delegate,
		"votes":    account.Votes.Latest(),
	})
}

// GetBox handles GET requests for the protected value
func (h *Handler) GetBox(w http.ResponseWriter, r *http.Request) {
	value, err := h.App.Box.Retrieve(r.Context())
	if err != nil {
		fail(w, "Failed to read box", err)
		return
	}
	owner, err := h.App.Box.Owner(r.Context())
	if err != nil {
		fail(w, "Failed to read box owner", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address": h.App.Addresses.Box,
		"owner":   owner,
		"value":   value,
	})
}

// StoreBox handles POST requests calling the owner-only setter directly
func (h *Handler) StoreBox(w http.ResponseWriter, r *http.Request) {
	var req StoreRequest
	if err := decode(r, &req); err != nil {
		fail(w, "Failed to decode store request", err)
		return
	}
	if req.Value == nil {
		fail(w, "Failed to decode store request", fmt.Errorf("%w: value is required", errInvalidRequest))
		return
	}
	if err := h.App.Box.Store(r.Context(), req.From, req.Value); err != nil {
		fail(w, "Failed to store value", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Value stored successfully",
		"value":   req.Value,
	})
}

// GetHead handles GET requests for the current block
func (h *Handler) GetHead(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.App.Chain.Head())
}

// Mine handles POST requests advancing the dev chain
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	var req MineRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			fail(w, "Failed to decode mine request", err)
			return
		}
	}

	var err error
	switch {
	case req.Seconds < 0:
		err = fmt.Errorf("%w: seconds must not be negative", errInvalidRequest)
	case req.Seconds > math.MaxInt64/int64(time.Second):
		err = fmt.Errorf("%w: seconds out of range", errInvalidRequest)
	case req.Seconds > 0:
		_, err = h.App.Chain.IncreaseTime(time.Duration(req.Seconds) * time.Second)
	default:
		blocks := req.Blocks
		if blocks == 0 {
			blocks = 1
		}
		_, err = h.App.Chain.Mine(blocks)
	}
	if err != nil {
		fail(w, "Failed to mine", err)
		return
	}
	writeJSON(w, http.StatusOK, h.App.Chain.Head())
}
