package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"governance-project/db"
	"governance-project/models"
)

// ErrNoTxn is returned when a repository call is made outside a chain transaction
var ErrNoTxn = errors.New("repository: no transaction in context")

const (
	proposalPrefix  = "proposal:"
	receiptPrefix   = "receipt:"
	operationPrefix = "operation:"
	accountPrefix   = "account:"
	paramPrefix     = "param:"
	stateKeyPrefix  = "state:"
	roleTableKey    = "timelock:roles"
	supplyKey       = "token:supply"
)

// Repository stores governance records as JSON in the transaction carried by
// the context. Typed getters return nil, nil when the record does not exist.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) kv(ctx context.Context) (db.KV, error) {
	txn := db.TxnFromContext(ctx)
	if txn == nil {
		return nil, ErrNoTxn
	}
	return txn, nil
}

func (r *Repository) getJSON(ctx context.Context, key string, v any) (bool, error) {
	kv, err := r.kv(ctx)
	if err != nil {
		return false, err
	}
	data, err := kv.Get([]byte(key))
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *Repository) putJSON(ctx context.Context, key string, v any) error {
	kv, err := r.kv(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return kv.Put([]byte(key), data)
}

func (r *Repository) delete(ctx context.Context, key string) error {
	kv, err := r.kv(ctx)
	if err != nil {
		return err
	}
	return kv.Delete([]byte(key))
}

// PutProposal stores a proposal under its id
func (r *Repository) PutProposal(ctx context.Context, p *models.Proposal) error {
	return r.putJSON(ctx, proposalPrefix+p.ID.Hex(), p)
}

// GetProposal retrieves a proposal by id
func (r *Repository) GetProposal(ctx context.Context, id common.Hash) (*models.Proposal, error) {
	var p models.Proposal
	found, err := r.getJSON(ctx, proposalPrefix+id.Hex(), &p)
	if err != nil || !found {
		return nil, err
	}
	return &p, nil
}

// GetAllProposals retrieves every stored proposal
func (r *Repository) GetAllProposals(ctx context.Context) ([]*models.Proposal, error) {
	kv, err := r.kv(ctx)
	if err != nil {
		return nil, err
	}
	var proposals []*models.Proposal
	err = kv.Iterate([]byte(proposalPrefix), func(key, value []byte) error {
		var p models.Proposal
		if err := json.Unmarshal(value, &p); err != nil {
			return err
		}
		proposals = append(proposals, &p)
		return nil
	})
	return proposals, err
}

func receiptKey(id common.Hash, voter common.Address) string {
	return receiptPrefix + id.Hex() + ":" + voter.Hex()
}

// PutReceipt stores a vote receipt for proposal id
func (r *Repository) PutReceipt(ctx context.Context, id common.Hash, receipt *models.VoteReceipt) error {
	return r.putJSON(ctx, receiptKey(id, receipt.Voter), receipt)
}

// GetReceipt retrieves the receipt of voter on proposal id
func (r *Repository) GetReceipt(ctx context.Context, id common.Hash, voter common.Address) (*models.VoteReceipt, error) {
	var receipt models.VoteReceipt
	found, err := r.getJSON(ctx, receiptKey(id, voter), &receipt)
	if err != nil || !found {
		return nil, err
	}
	return &receipt, nil
}

// GetReceipts retrieves all receipts recorded on proposal id
func (r *Repository) GetReceipts(ctx context.Context, id common.Hash) ([]*models.VoteReceipt, error) {
	kv, err := r.kv(ctx)
	if err != nil {
		return nil, err
	}
	var receipts []*models.VoteReceipt
	err = kv.Iterate([]byte(receiptPrefix+id.Hex()+":"), func(key, value []byte) error {
		var receipt models.VoteReceipt
		if err := json.Unmarshal(value, &receipt); err != nil {
			return err
		}
		receipts = append(receipts, &receipt)
		return nil
	})
	return receipts, err
}

// DeleteReceipts drops every receipt recorded on proposal id
func (r *Repository) DeleteReceipts(ctx context.Context, id common.Hash) error {
	kv, err := r.kv(ctx)
	if err != nil {
		return err
	}
	var keys [][]byte
	err = kv.Iterate([]byte(receiptPrefix+id.Hex()+":"), func(key, value []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := kv.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// PutOperation stores a timelock operation under its id
func (r *Repository) PutOperation(ctx context.Context, op *models.Operation) error {
	return r.putJSON(ctx, operationPrefix+op.ID.Hex(), op)
}

// GetOperation retrieves a timelock operation by id
func (r *Repository) GetOperation(ctx context.Context, id common.Hash) (*models.Operation, error) {
	var op models.Operation
	found, err := r.getJSON(ctx, operationPrefix+id.Hex(), &op)
	if err != nil || !found {
		return nil, err
	}
	return &op, nil
}

// DeleteOperation removes a timelock operation, returning it to Unset
func (r *Repository) DeleteOperation(ctx context.Context, id common.Hash) error {
	return r.delete(ctx, operationPrefix+id.Hex())
}

// GetRoleTable retrieves the timelock role table, empty when never written
func (r *Repository) GetRoleTable(ctx context.Context) (*models.RoleTable, error) {
	table := models.NewRoleTable()
	if _, err := r.getJSON(ctx, roleTableKey, table); err != nil {
		return nil, err
	}
	return table, nil
}

func (r *Repository) PutRoleTable(ctx context.Context, table *models.RoleTable) error {
	return r.putJSON(ctx, roleTableKey, table)
}

// GetAccount retrieves a token account, a fresh zero account when unknown
func (r *Repository) GetAccount(ctx context.Context, address common.Address) (*models.Account, error) {
	account := models.NewAccount(address)
	if _, err := r.getJSON(ctx, accountPrefix+address.Hex(), account); err != nil {
		return nil, err
	}
	return account, nil
}

func (r *Repository) PutAccount(ctx context.Context, account *models.Account) error {
	return r.putJSON(ctx, accountPrefix+account.Address.Hex(), account)
}

// GetSupply retrieves the total supply history
func (r *Repository) GetSupply(ctx context.Context) (models.Trace, error) {
	var trace models.Trace
	if _, err := r.getJSON(ctx, supplyKey, &trace); err != nil {
		return nil, err
	}
	return trace, nil
}

func (r *Repository) PutSupply(ctx context.Context, trace models.Trace) error {
	return r.putJSON(ctx, supplyKey, trace)
}

// GetParams decodes the named parameter set into v and reports whether it exists
func (r *Repository) GetParams(ctx context.Context, name string, v any) (bool, error) {
	return r.getJSON(ctx, paramPrefix+name, v)
}

func (r *Repository) PutParams(ctx context.Context, name string, v any) error {
	return r.putJSON(ctx, paramPrefix+name, v)
}

// GetState decodes the state of the target at address into v and reports whether it exists
func (r *Repository) GetState(ctx context.Context, address common.Address, v any) (bool, error) {
	return r.getJSON(ctx, stateKeyPrefix+address.Hex(), v)
}

func (r *Repository) PutState(ctx context.Context, address common.Address, v any) error {
	return r.putJSON(ctx, stateKeyPrefix+address.Hex(), v)
}
