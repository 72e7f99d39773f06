package handlers

import (
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"governance-project/governor"
	"governance-project/models"
)

// ProposeRequest submits a new proposal on behalf of From
type ProposeRequest struct {
	From        common.Address   `json:"from"`
	Targets     []common.Address `json:"targets"`
	Values      []*big.Int       `json:"values"`
	Calldatas   []hexutil.Bytes  `json:"calldatas"`
	Description string           `json:"description"`
}

// ProposalCallsRequest identifies a proposal by its content. DescriptionHash
// may be omitted when Description is given.
type ProposalCallsRequest struct {
	From            common.Address   `json:"from"`
	Targets         []common.Address `json:"targets"`
	Values          []*big.Int       `json:"values"`
	Calldatas       []hexutil.Bytes  `json:"calldatas"`
	DescriptionHash common.Hash      `json:"description_hash"`
	Description     string           `json:"description"`
}

func (p ProposalCallsRequest) descriptionHash() common.Hash {
	if p.DescriptionHash == (common.Hash{}) && p.Description != "" {
		return governor.HashDescription(p.Description)
	}
	return p.DescriptionHash
}

// VoteRequest casts From's ballot; Support is "for", "against" or "abstain"
type VoteRequest struct {
	From    common.Address  `json:"from"`
	Support *models.Support `json:"support"`
	Reason  string          `json:"reason"`
}

func calldataBytes(in []hexutil.Bytes) [][]byte {
	out := make([][]byte, len(in))
	for i, d := range in {
		out[i] = d
	}
	return out
}

// Propose handles POST requests creating a proposal
func (h *Handler) Propose(w http.ResponseWriter, r *http.Request) {
	var req ProposeRequest
	if err := decode(r, &req); err != nil {
		fail(w, "Failed to decode proposal", err)
		return
	}

	id, err := h.App.Governor.Propose(r.Context(), req.From, req.Targets, req.Values, calldataBytes(req.Calldatas), req.Description)
	if err != nil {
		fail(w, "Failed to create proposal", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":          "Proposal created successfully",
		"proposal_id":      id,
		"description_hash": governor.HashDescription(req.Description),
	})
}

// ListProposals handles GET requests for every proposal with its state
func (h *Handler) ListProposals(w http.ResponseWriter, r *http.Request) {
	proposals, err := h.App.Governor.Proposals(r.Context())
	if err != nil {
		fail(w, "Failed to list proposals", err)
		return
	}
	if proposals == nil {
		proposals = []governor.ProposalWithState{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"proposals": proposals})
}

// GetProposal handles GET requests for a single proposal
func (h *Handler) GetProposal(w http.ResponseWriter, r *http.Request) {
	id, err := pathHash(r, "id")
	if err != nil {
		fail(w, "Invalid proposal id", err)
		return
	}
	p, err := h.App.Governor.Proposal(r.Context(), id)
	if err != nil {
		fail(w, "Failed to get proposal", err)
		return
	}
	state, err := h.App.Governor.State(r.Context(), id)
	if err != nil {
		fail(w, "Failed to get proposal state", err)
		return
	}
	writeJSON(w, http.StatusOK, governor.ProposalWithState{Proposal: p, State: state})
}

// CastVote handles POST requests voting on a proposal
func (h *Handler) CastVote(w http.ResponseWriter, r *http.Request) {
	id, err := pathHash(r, "id")
	if err != nil {
		fail(w, "Invalid proposal id", err)
		return
	}
	var req VoteRequest
	if err := decode(r, &req); err != nil {
		fail(w, "Failed to decode vote", err)
		return
	}
	if req.Support == nil {
		fail(w, "Failed to decode vote", fmt.Errorf("%w: support is required", errInvalidRequest))
		return
	}

	weight, err := h.App.Governor.CastVoteWithReason(r.Context(), id, req.From, *req.Support, req.Reason)
	if err != nil {
		fail(w, "Failed to cast vote", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Vote cast successfully",
		"weight":  weight,
	})
}

// GetReceipt handles GET requests for a voter's ballot
func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathHash(r, "id")
	if err != nil {
		fail(w, "Invalid proposal id", err)
		return
	}
	voter, err := pathAddress(r, "voter")
	if err != nil {
		fail(w, "Invalid voter", err)
		return
	}
	receipt, err := h.App.Governor.Receipt(r.Context(), id, voter)
	if err != nil {
		fail(w, "Failed to get receipt", err)
		return
	}
	if receipt == nil {
		receipt = &models.VoteReceipt{Voter: voter, Weight: new(big.Int)}
	}
	writeJSON(w, http.StatusOK, receipt)
}

// ListReceipts handles GET requests for every ballot on a proposal
func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	id, err := pathHash(r, "id")
	if err != nil {
		fail(w, "Invalid proposal id", err)
		return
	}
	receipts, err := h.App.Governor.Receipts(r.Context(), id)
	if err != nil {
		fail(w, "Failed to list receipts", err)
		return
	}
	if receipts == nil {
		receipts = []*models.VoteReceipt{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"proposal_id": id,
		"receipts":    receipts,
	})
}

// QueueProposal handles POST requests handing a succeeded proposal to the timelock
func (h *Handler) QueueProposal(w http.ResponseWriter, r *http.Request) {
	var req ProposalCallsRequest
	if err := decode(r, &req); err != nil {
		fail(w, "Failed to decode queue request", err)
		return
	}
	id, err := h.App.Governor.Queue(r.Context(), req.Targets, req.Values, calldataBytes(req.Calldatas), req.descriptionHash())
	if err != nil {
		fail(w, "Failed to queue proposal", err)
		return
	}
	eta, err := h.App.Governor.ProposalEta(r.Context(), id)
	if err != nil {
		fail(w, "Failed to read proposal eta", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Proposal queued successfully",
		"proposal_id": id,
		"eta":         eta,
	})
}

// ExecuteProposal handles POST requests executing a queued proposal
func (h *Handler) ExecuteProposal(w http.ResponseWriter, r *http.Request) {
	var req ProposalCallsRequest
	if err := decode(r, &req); err != nil {
		fail(w, "Failed to decode execute request", err)
		return
	}
	id, err := h.App.Governor.Execute(r.Context(), req.Targets, req.Values, calldataBytes(req.Calldatas), req.descriptionHash())
	if err != nil {
		fail(w, "Failed to execute proposal", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Proposal executed successfully",
		"proposal_id": id,
	})
}

// CancelProposal handles POST requests withdrawing a proposal
func (h *Handler) CancelProposal(w http.ResponseWriter, r *http.Request) {
	var req ProposalCallsRequest
	if err := decode(r, &req); err != nil {
		fail(w, "Failed to decode cancel request", err)
		return
	}
	id, err := h.App.Governor.Cancel(r.Context(), req.From, req.Targets, req.Values, calldataBytes(req.Calldatas), req.descriptionHash())
	if err != nil {
		fail(w, "Failed to cancel proposal", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Proposal canceled successfully",
		"proposal_id": id,
	})
}

// GetSettings handles GET requests for the governor parameters
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.App.Governor.Settings(r.Context())
	if err != nil {
		fail(w, "Failed to get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"settings":           settings,
		"quorum_denominator": governor.QuorumDenominator,
		"governor":           h.App.Addresses.Governor,
	})
}

// GetQuorum handles GET requests for the quorum at a block
func (h *Handler) GetQuorum(w http.ResponseWriter, r *http.Request) {
	point, err := pathUint(r, "point")
	if err != nil {
		fail(w, "Invalid point", err)
		return
	}
	quorum, err := h.App.Governor.Quorum(r.Context(), point)
	if err != nil {
		fail(w, "Failed to get quorum", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"point": point, "quorum": quorum})
}

// GetPastVotes handles GET requests for an account's voting power at a block
func (h *Handler) GetPastVotes(w http.ResponseWriter, r *http.Request) {
	account, err := pathAddress(r, "account")
	if err != nil {
		fail(w, "Invalid account", err)
		return
	}
	point, err := pathUint(r, "point")
	if err != nil {
		fail(w, "Invalid point", err)
		return
	}
	votes, err := h.App.Governor.GetVotes(r.Context(), account, point)
	if err != nil {
		fail(w, "Failed to get votes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account": account,
		"point":   point,
		"votes":   votes,
	})
}
