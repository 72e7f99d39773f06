package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"governance-project/app"
	"governance-project/config"
	"governance-project/db"
	"governance-project/governor"
	"governance-project/handlers"
	"governance-project/logger"
	"governance-project/models"
	"governance-project/routers"
	"governance-project/target"
	"governance-project/timelock"
)

var (
	account1 = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	account2 = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	stranger = common.HexToAddress("0x57")
)

func testServer(t *testing.T) (*mux.Router, *app.App) {
	t.Helper()
	logger.Logger = zap.NewNop()

	cfg := config.Default()
	cfg.Chain.GenesisTime = "2024-01-01T00:00:00Z"
	cfg.Genesis.Allocations = []config.Allocation{
		{Address: account1.Hex(), Amount: "200"},
		{Address: account2.Hex(), Amount: "100", Delegate: account1.Hex()},
	}

	store, err := db.NewMemLevelDB()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reg := prometheus.NewRegistry()
	a, err := app.New(cfg, store, reg)
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	if err := a.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, err := a.Chain.Mine(1); err != nil {
		t.Fatalf("mine: %v", err)
	}

	router := mux.NewRouter()
	routers.RegisterRoutes(router, handlers.NewHandler(a), reg)
	return router, a
}

func do(router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		bodyJSON, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(bodyJSON))
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func expectStatus(t *testing.T, res *httptest.ResponseRecorder, want int) {
	t.Helper()
	if res.Code != want {
		t.Fatalf("expected status %d, got %d, body: %s", want, res.Code, res.Body.String())
	}
}

func proposalBody(a *app.App, value int64, description string) map[string]interface{} {
	return map[string]interface{}{
		"from":        account1,
		"targets":     []common.Address{a.Addresses.Box},
		"values":      []*big.Int{big.NewInt(0)},
		"calldatas":   []hexutil.Bytes{target.EncodeStore(big.NewInt(value))},
		"description": description,
	}
}

func proposalState(t *testing.T, router *mux.Router, id common.Hash) string {
	t.Helper()
	res := do(router, http.MethodGet, "/proposals/"+id.Hex(), nil)
	expectStatus(t, res, http.StatusOK)
	var got struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode proposal: %v", err)
	}
	return got.State
}

func TestProposalLifecycle(t *testing.T) {
	router, a := testServer(t)
	body := proposalBody(a, 77, "store 77")

	res := do(router, http.MethodPost, "/proposals", body)
	expectStatus(t, res, http.StatusCreated)
	var created struct {
		ProposalID common.Hash `json:"proposal_id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state := proposalState(t, router, created.ProposalID); state != "Pending" {
		t.Fatalf("expected Pending, got %s", state)
	}

	expectStatus(t, do(router, http.MethodPost, "/chain/mine", nil), http.StatusOK)

	votePath := "/proposals/" + created.ProposalID.Hex() + "/votes"
	vote := map[string]interface{}{"from": account1, "support": "for", "reason": "yes"}
	expectStatus(t, do(router, http.MethodPost, votePath, vote), http.StatusCreated)
	expectStatus(t, do(router, http.MethodPost, votePath, vote), http.StatusConflict)

	res = do(router, http.MethodGet, votePath+"/"+account1.Hex(), nil)
	expectStatus(t, res, http.StatusOK)
	var receipt models.VoteReceipt
	if err := json.NewDecoder(res.Body).Decode(&receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if !receipt.HasVoted || receipt.Weight.Int64() != 300 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	res = do(router, http.MethodGet, votePath, nil)
	expectStatus(t, res, http.StatusOK)
	var listed struct {
		Receipts []models.VoteReceipt `json:"receipts"`
	}
	if err := json.NewDecoder(res.Body).Decode(&listed); err != nil {
		t.Fatalf("decode receipts: %v", err)
	}
	if len(listed.Receipts) != 1 || listed.Receipts[0].Voter != account1 {
		t.Fatalf("unexpected receipts: %+v", listed.Receipts)
	}

	expectStatus(t, do(router, http.MethodPost, "/chain/mine", map[string]interface{}{"blocks": 6}), http.StatusOK)
	if state := proposalState(t, router, created.ProposalID); state != "Succeeded" {
		t.Fatalf("expected Succeeded, got %s", state)
	}

	calls := map[string]interface{}{
		"targets":     body["targets"],
		"values":      body["values"],
		"calldatas":   body["calldatas"],
		"description": "store 77",
	}
	expectStatus(t, do(router, http.MethodPost, "/proposals/queue", calls), http.StatusOK)
	expectStatus(t, do(router, http.MethodPost, "/proposals/execute", calls), http.StatusConflict)

	expectStatus(t, do(router, http.MethodPost, "/chain/mine", map[string]interface{}{"seconds": 3600}), http.StatusOK)
	expectStatus(t, do(router, http.MethodPost, "/proposals/execute", calls), http.StatusOK)
	if state := proposalState(t, router, created.ProposalID); state != "Executed" {
		t.Fatalf("expected Executed, got %s", state)
	}

	res = do(router, http.MethodGet, "/box", nil)
	expectStatus(t, res, http.StatusOK)
	var box struct {
		Value *big.Int `json:"value"`
	}
	if err := json.NewDecoder(res.Body).Decode(&box); err != nil {
		t.Fatalf("decode box: %v", err)
	}
	if box.Value.Int64() != 77 {
		t.Fatalf("expected box value 77, got %s", box.Value)
	}

	res = do(router, http.MethodGet, "/proposals", nil)
	expectStatus(t, res, http.StatusOK)
	if !strings.Contains(res.Body.String(), created.ProposalID.Hex()) {
		t.Fatalf("proposal missing from listing: %s", res.Body.String())
	}
}

func TestPropose_InvalidPayload(t *testing.T) {
	router, _ := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/proposals", strings.NewReader("{"))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	expectStatus(t, res, http.StatusBadRequest)
}

func TestPropose_Duplicate(t *testing.T) {
	router, a := testServer(t)
	body := proposalBody(a, 1, "dup")
	expectStatus(t, do(router, http.MethodPost, "/proposals", body), http.StatusCreated)
	expectStatus(t, do(router, http.MethodPost, "/proposals", body), http.StatusConflict)
}

func TestGetProposal_NotFound(t *testing.T) {
	router, _ := testServer(t)
	expectStatus(t, do(router, http.MethodGet, "/proposals/"+common.HexToHash("0x01").Hex(), nil), http.StatusNotFound)
	expectStatus(t, do(router, http.MethodGet, "/proposals/0x1234", nil), http.StatusBadRequest)
}

func TestCastVote_MissingSupport(t *testing.T) {
	router, a := testServer(t)
	id := governor.HashProposal([]common.Address{a.Addresses.Box}, []*big.Int{big.NewInt(0)},
		[][]byte{target.EncodeStore(big.NewInt(1))}, governor.HashDescription("x"))
	res := do(router, http.MethodPost, "/proposals/"+id.Hex()+"/votes", map[string]interface{}{"from": account1})
	expectStatus(t, res, http.StatusBadRequest)
}

func TestStoreBox_Unauthorized(t *testing.T) {
	router, a := testServer(t)
	res := do(router, http.MethodPost, "/box/store", map[string]interface{}{"from": a.Addresses.Deployer, "value": 5})
	expectStatus(t, res, http.StatusForbidden)
}

func TestTimelockRoles(t *testing.T) {
	router, a := testServer(t)

	res := do(router, http.MethodGet, "/timelock/roles", nil)
	expectStatus(t, res, http.StatusOK)

	grant := map[string]interface{}{"from": stranger, "role": "PROPOSER", "account": stranger}
	expectStatus(t, do(router, http.MethodPost, "/timelock/roles/grant", grant), http.StatusForbidden)

	grant["from"] = a.Addresses.Deployer
	expectStatus(t, do(router, http.MethodPost, "/timelock/roles/grant", grant), http.StatusOK)
	ok, err := a.Timelock.HasRole(context.Background(), models.RoleProposer, stranger)
	if err != nil || !ok {
		t.Fatalf("expected stranger to be a proposer, got %v %v", ok, err)
	}

	grant["role"] = "OWNER"
	expectStatus(t, do(router, http.MethodPost, "/timelock/roles/grant", grant), http.StatusBadRequest)

	renounce := map[string]interface{}{"from": a.Addresses.Deployer, "role": "ADMIN", "account": a.Addresses.Deployer}
	expectStatus(t, do(router, http.MethodPost, "/timelock/roles/renounce", renounce), http.StatusOK)
	expectStatus(t, do(router, http.MethodPost, "/timelock/roles/revoke", map[string]interface{}{
		"from": a.Addresses.Deployer, "role": "PROPOSER", "account": stranger,
	}), http.StatusForbidden)
}

func TestTimelockScheduleAndExecute(t *testing.T) {
	router, a := testServer(t)
	grant := map[string]interface{}{"from": a.Addresses.Deployer, "role": "PROPOSER", "account": account2}
	expectStatus(t, do(router, http.MethodPost, "/timelock/roles/grant", grant), http.StatusOK)

	calls := []models.Call{{Target: a.Addresses.Box, Value: new(big.Int), Data: target.EncodeStore(big.NewInt(9))}}
	schedule := map[string]interface{}{"from": account2, "calls": calls, "delay": "1m"}
	expectStatus(t, do(router, http.MethodPost, "/timelock/schedule", schedule), http.StatusBadRequest)

	schedule["delay"] = ""
	res := do(router, http.MethodPost, "/timelock/schedule", schedule)
	expectStatus(t, res, http.StatusCreated)
	var scheduled struct {
		OperationID common.Hash `json:"operation_id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&scheduled); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if want := timelock.HashOperationBatch(calls, common.Hash{}, common.Hash{}); scheduled.OperationID != want {
		t.Fatalf("expected id %s, got %s", want.Hex(), scheduled.OperationID.Hex())
	}

	res = do(router, http.MethodGet, "/timelock/operations/"+scheduled.OperationID.Hex(), nil)
	expectStatus(t, res, http.StatusOK)
	if !strings.Contains(res.Body.String(), `"state":"Waiting"`) {
		t.Fatalf("expected Waiting operation, got %s", res.Body.String())
	}

	execute := map[string]interface{}{"from": stranger, "calls": calls}
	expectStatus(t, do(router, http.MethodPost, "/timelock/execute", execute), http.StatusConflict)
	expectStatus(t, do(router, http.MethodPost, "/chain/mine", map[string]interface{}{"seconds": 3600}), http.StatusOK)
	expectStatus(t, do(router, http.MethodPost, "/timelock/execute", execute), http.StatusOK)
	expectStatus(t, do(router, http.MethodPost, "/timelock/execute", execute), http.StatusConflict)
}

func TestGetOperation_NotFound(t *testing.T) {
	router, _ := testServer(t)
	expectStatus(t, do(router, http.MethodGet, "/timelock/operations/"+common.HexToHash("0x02").Hex(), nil), http.StatusNotFound)
}

func TestTokenEndpoints(t *testing.T) {
	router, a := testServer(t)

	mint := map[string]interface{}{"from": stranger, "to": stranger, "amount": 10}
	expectStatus(t, do(router, http.MethodPost, "/token/mint", mint), http.StatusForbidden)
	mint["from"] = a.Addresses.Deployer
	expectStatus(t, do(router, http.MethodPost, "/token/mint", mint), http.StatusCreated)

	transfer := map[string]interface{}{"from": stranger, "to": account2, "amount": 11}
	expectStatus(t, do(router, http.MethodPost, "/token/transfer", transfer), http.StatusBadRequest)
	transfer["amount"] = 10
	expectStatus(t, do(router, http.MethodPost, "/token/transfer", transfer), http.StatusOK)

	delegate := map[string]interface{}{"from": account2, "delegatee": account2}
	expectStatus(t, do(router, http.MethodPost, "/token/delegate", delegate), http.StatusOK)

	res := do(router, http.MethodGet, "/token/accounts/"+account2.Hex(), nil)
	expectStatus(t, res, http.StatusOK)
	var account struct {
		Balance *big.Int `json:"balance"`
		Votes   *big.Int `json:"votes"`
	}
	if err := json.NewDecoder(res.Body).Decode(&account); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if account.Balance.Int64() != 110 || account.Votes.Int64() != 110 {
		t.Fatalf("expected 110 balance and votes, got %s %s", account.Balance, account.Votes)
	}

	// future lookups are rejected
	expectStatus(t, do(router, http.MethodGet, fmt.Sprintf("/governor/votes/%s/%d", account2.Hex(), 1000), nil), http.StatusBadRequest)
	expectStatus(t, do(router, http.MethodGet, "/governor/quorum/1", nil), http.StatusOK)
	expectStatus(t, do(router, http.MethodGet, "/governor/settings", nil), http.StatusOK)
}

func TestMine_Overflow(t *testing.T) {
	router, a := testServer(t)
	before := a.Chain.Head()
	expectStatus(t, do(router, http.MethodPost, "/chain/mine", map[string]interface{}{"blocks": uint64(math.MaxUint64)}), http.StatusBadRequest)
	expectStatus(t, do(router, http.MethodPost, "/chain/mine", map[string]interface{}{"seconds": int64(math.MaxInt64)}), http.StatusBadRequest)
	if a.Chain.Head() != before {
		t.Fatalf("head moved from %+v to %+v", before, a.Chain.Head())
	}
}

func TestPropose_ValueOutOfRange(t *testing.T) {
	router, a := testServer(t)
	body := proposalBody(a, 1, "wrap")
	body["values"] = []*big.Int{new(big.Int).Lsh(big.NewInt(1), 256)}
	expectStatus(t, do(router, http.MethodPost, "/proposals", body), http.StatusBadRequest)
}

func TestMetricsEndpoint(t *testing.T) {
	router, a := testServer(t)
	expectStatus(t, do(router, http.MethodPost, "/proposals", proposalBody(a, 3, "metrics")), http.StatusCreated)

	res := do(router, http.MethodGet, "/metrics", nil)
	expectStatus(t, res, http.StatusOK)
	if !strings.Contains(res.Body.String(), "governor_proposals_created_total 1") {
		t.Fatalf("expected proposal counter in metrics output")
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrUnauthorized, http.StatusForbidden},
		{fmt.Errorf("%w: %w", timelock.ErrNotReady, timelock.ErrUnknownOperation), http.StatusNotFound},
		{fmt.Errorf("%w: %w", timelock.ErrBatchCallFailed, models.ErrUnauthorized), http.StatusConflict},
		{governor.ErrAlreadyVoted, http.StatusConflict},
		{governor.ErrZeroWeight, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := handlers.StatusCode(tt.err); got != tt.want {
			t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
