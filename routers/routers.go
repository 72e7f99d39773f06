package routers

import (
	"governance-project/handlers"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes sets up all the HTTP routes of the governance node.
// /metrics is only served when gatherer is set.
func RegisterRoutes(r *mux.Router, h *handlers.Handler, gatherer prometheus.Gatherer) {

	// Proposal lifecycle
	r.HandleFunc("/proposals", h.Propose).Methods("POST")
	r.HandleFunc("/proposals", h.ListProposals).Methods("GET")
	r.HandleFunc("/proposals/queue", h.QueueProposal).Methods("POST")
	r.HandleFunc("/proposals/execute", h.ExecuteProposal).Methods("POST")
	r.HandleFunc("/proposals/cancel", h.CancelProposal).Methods("POST")
	r.HandleFunc("/proposals/{id}", h.GetProposal).Methods("GET")
	r.HandleFunc("/proposals/{id}/votes", h.CastVote).Methods("POST")
	r.HandleFunc("/proposals/{id}/votes", h.ListReceipts).Methods("GET")
	r.HandleFunc("/proposals/{id}/votes/{voter}", h.GetReceipt).Methods("GET")

	// Governor parameters and point-in-time reads
	r.HandleFunc("/governor/settings", h.GetSettings).Methods("GET")
	r.HandleFunc("/governor/quorum/{point}", h.GetQuorum).Methods("GET")
	r.HandleFunc("/governor/votes/{account}/{point}", h.GetPastVotes).Methods("GET")

	// Timelock operations and roles
	r.HandleFunc("/timelock/schedule", h.Schedule).Methods("POST")
	r.HandleFunc("/timelock/execute", h.ExecuteOperation).Methods("POST")
	r.HandleFunc("/timelock/cancel", h.CancelOperation).Methods("POST")
	r.HandleFunc("/timelock/operations/{id}", h.GetOperation).Methods("GET")
	r.HandleFunc("/timelock/roles", h.GetRoles).Methods("GET")
	r.HandleFunc("/timelock/roles/grant", h.GrantRole).Methods("POST")
	r.HandleFunc("/timelock/roles/revoke", h.RevokeRole).Methods("POST")
	r.HandleFunc("/timelock/roles/renounce", h.RenounceRole).Methods("POST")

	// Voting token
	r.HandleFunc("/token/mint", h.Mint).Methods("POST")
	r.HandleFunc("/token/transfer", h.Transfer).Methods("POST")
	r.HandleFunc("/token/delegate", h.Delegate).Methods("POST")
	r.HandleFunc("/token/accounts/{account}", h.GetAccount).Methods("GET")

	// Protected resource
	r.HandleFunc("/box", h.GetBox).Methods("GET")
	r.HandleFunc("/box/store", h.StoreBox).Methods("POST")

	// Dev chain clock
	r.HandleFunc("/chain/head", h.GetHead).Methods("GET")
	r.HandleFunc("/chain/mine", h.Mine).Methods("POST")

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
}
