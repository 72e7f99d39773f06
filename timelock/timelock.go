package timelock

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"governance-project/chain"
	"governance-project/logger"
	"governance-project/metrics"
	"governance-project/models"
	"governance-project/repository"
	"governance-project/target"
)

const paramsName = "timelock"

type params struct {
	MinDelay time.Duration `json:"min_delay"`
}

// Timelock schedules call batches, holds them for at least the minimum
// delay and executes each at most once. Every entry point is gated by the
// role table.
type Timelock struct {
	address common.Address
	chain   *chain.Chain
	repo    *repository.Repository
	router  *target.Router
	metrics *metrics.Metrics
}

func New(address common.Address, c *chain.Chain, repo *repository.Repository, router *target.Router, m *metrics.Metrics) *Timelock {
	return &Timelock{address: address, chain: c, repo: repo, router: router, metrics: m}
}

// Address is the account the timelock calls targets from
func (t *Timelock) Address() common.Address {
	return t.address
}

// Initialize sets the minimum delay and the initial grants. The timelock
// administers itself; admin, when non-zero, is an extra bootstrap admin
// expected to renounce once setup is done. Proposers also become cancellers.
func (t *Timelock) Initialize(ctx context.Context, minDelay time.Duration, admin common.Address, proposers, executors []common.Address) error {
	if minDelay < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDelay, minDelay)
	}
	return t.chain.Transact(ctx, func(ctx context.Context) error {
		var p params
		found, err := t.repo.GetParams(ctx, paramsName, &p)
		if err != nil {
			return err
		}
		if found {
			return ErrAlreadyInitialized
		}
		if err := t.repo.PutParams(ctx, paramsName, params{MinDelay: minDelay}); err != nil {
			return err
		}

		before, err := t.repo.GetRoleTable(ctx)
		if err != nil {
			return err
		}
		table := before.Clone()
		table.Add(models.RoleAdmin, t.address)
		if admin != (common.Address{}) {
			table.Add(models.RoleAdmin, admin)
		}
		for _, p := range proposers {
			table.Add(models.RoleProposer, p)
			table.Add(models.RoleCanceller, p)
		}
		for _, e := range executors {
			table.Add(models.RoleExecutor, e)
		}
		if err := checkRoleInvariants(before, table); err != nil {
			return err
		}
		return t.repo.PutRoleTable(ctx, table)
	})
}

func (t *Timelock) params(ctx context.Context) (params, error) {
	var p params
	_, err := t.repo.GetParams(ctx, paramsName, &p)
	return p, err
}

func (t *Timelock) requireRole(ctx context.Context, role models.Role, caller common.Address, open bool) error {
	table, err := t.repo.GetRoleTable(ctx)
	if err != nil {
		return err
	}
	if table.Has(role, caller) || (open && table.Has(role, models.AnyoneAddress)) {
		return nil
	}
	return fmt.Errorf("%w: %s lacks role %s", models.ErrUnauthorized, caller.Hex(), role)
}

// Schedule queues a single call
func (t *Timelock) Schedule(ctx context.Context, caller common.Address, call models.Call, predecessor, salt common.Hash, delay time.Duration) (common.Hash, error) {
	return t.ScheduleBatch(ctx, caller, []models.Call{call}, predecessor, salt, delay)
}

// ScheduleBatch queues calls to become executable delay from now. Caller must hold PROPOSER.
func (t *Timelock) ScheduleBatch(ctx context.Context, caller common.Address, calls []models.Call, predecessor, salt common.Hash, delay time.Duration) (common.Hash, error) {
	if len(calls) == 0 {
		return common.Hash{}, ErrEmptyBatch
	}
	if delay < 0 {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrInvalidDelay, delay)
	}
	if err := models.CheckCallValues(calls); err != nil {
		return common.Hash{}, err
	}
	id := HashOperationBatch(calls, predecessor, salt)

	var readyAt time.Time
	err := t.chain.Transact(ctx, func(ctx context.Context) error {
		existing, err := t.repo.GetOperation(ctx, id)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", ErrAlreadyScheduled, id.Hex())
		}
		if err := t.requireRole(ctx, models.RoleProposer, caller, false); err != nil {
			return err
		}
		p, err := t.params(ctx)
		if err != nil {
			return err
		}
		if delay < p.MinDelay {
			return fmt.Errorf("%w: %s < %s", ErrInsufficientDelay, delay, p.MinDelay)
		}

		readyAt = t.chain.Head().Time.Add(delay)
		return t.repo.PutOperation(ctx, &models.Operation{
			ID:          id,
			Calls:       normalizeCalls(calls),
			Predecessor: predecessor,
			Salt:        salt,
			ReadyAt:     readyAt,
		})
	})
	if err != nil {
		return common.Hash{}, err
	}

	t.metrics.OperationScheduled()
	logger.Logger.Info("Operation scheduled",
		zap.String("operation_id", id.Hex()),
		zap.Int("calls", len(calls)),
		zap.String("predecessor", predecessor.Hex()),
		zap.Time("ready_at", readyAt))
	return id, nil
}

// Execute runs a single-call operation
func (t *Timelock) Execute(ctx context.Context, caller common.Address, call models.Call, predecessor, salt common.Hash) error {
	return t.ExecuteBatch(ctx, caller, []models.Call{call}, predecessor, salt)
}

// ExecuteBatch runs a ready operation. Caller must hold EXECUTOR unless the
// role is open to anyone. The operation is marked Done before any target is
// called; a failing call aborts the whole transaction, Done included.
func (t *Timelock) ExecuteBatch(ctx context.Context, caller common.Address, calls []models.Call, predecessor, salt common.Hash) error {
	if err := models.CheckCallValues(calls); err != nil {
		return err
	}
	id := HashOperationBatch(calls, predecessor, salt)

	err := t.chain.Transact(ctx, func(ctx context.Context) error {
		if err := t.requireRole(ctx, models.RoleExecutor, caller, true); err != nil {
			return err
		}
		op, err := t.repo.GetOperation(ctx, id)
		if err != nil {
			return err
		}
		if op == nil {
			return fmt.Errorf("%w: %w %s", ErrNotReady, ErrUnknownOperation, id.Hex())
		}

		now := t.chain.Head().Time
		switch op.StateAt(now) {
		case models.OperationDone:
			return fmt.Errorf("%w: %s", ErrAlreadyExecuted, id.Hex())
		case models.OperationWaiting:
			return fmt.Errorf("%w: %s ready at %s, now %s", ErrNotReady, id.Hex(), op.ReadyAt, now)
		}
		if predecessor != (common.Hash{}) {
			pred, err := t.repo.GetOperation(ctx, predecessor)
			if err != nil {
				return err
			}
			if pred.StateAt(now) != models.OperationDone {
				return fmt.Errorf("%w: %s", ErrPredecessorNotDone, predecessor.Hex())
			}
		}

		op.Done = true
		if err := t.repo.PutOperation(ctx, op); err != nil {
			return err
		}
		for i, call := range op.Calls {
			if err := t.router.Call(ctx, t.address, call); err != nil {
				return fmt.Errorf("%w: call %d to %s: %w", ErrBatchCallFailed, i, call.Target.Hex(), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	t.metrics.OperationExecuted()
	logger.Logger.Info("Operation executed",
		zap.String("operation_id", id.Hex()), zap.String("executor", caller.Hex()))
	return nil
}

// Cancel drops a pending operation. Caller must hold CANCELLER.
func (t *Timelock) Cancel(ctx context.Context, caller common.Address, id common.Hash) error {
	err := t.chain.Transact(ctx, func(ctx context.Context) error {
		if err := t.requireRole(ctx, models.RoleCanceller, caller, false); err != nil {
			return err
		}
		op, err := t.repo.GetOperation(ctx, id)
		if err != nil {
			return err
		}
		if !op.StateAt(t.chain.Head().Time).Pending() {
			return fmt.Errorf("%w: %s", ErrNotPending, id.Hex())
		}
		return t.repo.DeleteOperation(ctx, id)
	})
	if err != nil {
		return err
	}

	t.metrics.OperationCanceled()
	logger.Logger.Info("Operation canceled",
		zap.String("operation_id", id.Hex()), zap.String("canceller", caller.Hex()))
	return nil
}

// GrantRole adds account to role. Caller must hold ADMIN.
func (t *Timelock) GrantRole(ctx context.Context, caller common.Address, role models.Role, account common.Address) error {
	return t.updateRoles(ctx, role, "grant", account, func(ctx context.Context, table *models.RoleTable) error {
		if err := t.requireRole(ctx, models.RoleAdmin, caller, false); err != nil {
			return err
		}
		table.Add(role, account)
		return nil
	})
}

// RevokeRole removes account from role. Caller must hold ADMIN. Revoking
// ADMIN from its last external holder is allowed and cannot be undone
// except through an executed proposal.
func (t *Timelock) RevokeRole(ctx context.Context, caller common.Address, role models.Role, account common.Address) error {
	return t.updateRoles(ctx, role, "revoke", account, func(ctx context.Context, table *models.RoleTable) error {
		if err := t.requireRole(ctx, models.RoleAdmin, caller, false); err != nil {
			return err
		}
		table.Remove(role, account)
		return nil
	})
}

// RenounceRole lets an account drop its own grant
func (t *Timelock) RenounceRole(ctx context.Context, caller common.Address, role models.Role, account common.Address) error {
	return t.updateRoles(ctx, role, "renounce", account, func(ctx context.Context, table *models.RoleTable) error {
		if caller != account {
			return fmt.Errorf("%w: can only renounce roles for self", models.ErrUnauthorized)
		}
		table.Remove(role, account)
		return nil
	})
}

func (t *Timelock) updateRoles(ctx context.Context, role models.Role, action string, account common.Address, mutate func(ctx context.Context, table *models.RoleTable) error) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	var changed bool
	err := t.chain.Transact(ctx, func(ctx context.Context) error {
		before, err := t.repo.GetRoleTable(ctx)
		if err != nil {
			return err
		}
		table := before.Clone()
		if err := mutate(ctx, table); err != nil {
			return err
		}
		if err := checkRoleInvariants(before, table); err != nil {
			return err
		}
		changed = table.Version != before.Version
		if !changed {
			return nil
		}
		return t.repo.PutRoleTable(ctx, table)
	})
	if err != nil || !changed {
		return err
	}

	t.metrics.RoleChanged(string(role), action)
	logger.Logger.Info("Role updated",
		zap.String("role", string(role)),
		zap.String("action", action),
		zap.String("account", account.Hex()))
	return nil
}

// UpdateDelay changes the minimum delay. Only the timelock itself may call
// it, which means only through an executed operation.
func (t *Timelock) UpdateDelay(ctx context.Context, caller common.Address, delay time.Duration) error {
	if caller != t.address {
		return fmt.Errorf("%w: delay can only be changed by the timelock", models.ErrUnauthorized)
	}
	if delay < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDelay, delay)
	}
	return t.chain.Transact(ctx, func(ctx context.Context) error {
		p, err := t.params(ctx)
		if err != nil {
			return err
		}
		logger.Logger.Info("Min delay changed",
			zap.Duration("old", p.MinDelay), zap.Duration("new", delay))
		p.MinDelay = delay
		return t.repo.PutParams(ctx, paramsName, p)
	})
}

// HashOperationBatch exposes the id derivation to callers holding a *Timelock
func (t *Timelock) HashOperationBatch(calls []models.Call, predecessor, salt common.Hash) common.Hash {
	return HashOperationBatch(calls, predecessor, salt)
}

func (t *Timelock) MinDelay(ctx context.Context) (time.Duration, error) {
	var p params
	err := t.chain.View(ctx, func(ctx context.Context) error {
		var err error
		p, err = t.params(ctx)
		return err
	})
	return p.MinDelay, err
}

// Operation returns the stored operation, nil when unset
func (t *Timelock) Operation(ctx context.Context, id common.Hash) (*models.Operation, error) {
	var op *models.Operation
	err := t.chain.View(ctx, func(ctx context.Context) error {
		var err error
		op, err = t.repo.GetOperation(ctx, id)
		return err
	})
	return op, err
}

func (t *Timelock) OperationState(ctx context.Context, id common.Hash) (models.OperationState, error) {
	op, err := t.Operation(ctx, id)
	if err != nil {
		return models.OperationUnset, err
	}
	return op.StateAt(t.chain.Head().Time), nil
}

// Timestamp returns the ready time of id, zero when unset
func (t *Timelock) Timestamp(ctx context.Context, id common.Hash) (time.Time, error) {
	op, err := t.Operation(ctx, id)
	if err != nil || op == nil {
		return time.Time{}, err
	}
	return op.ReadyAt, nil
}

func (t *Timelock) IsOperation(ctx context.Context, id common.Hash) (bool, error) {
	state, err := t.OperationState(ctx, id)
	return state != models.OperationUnset, err
}

func (t *Timelock) IsOperationPending(ctx context.Context, id common.Hash) (bool, error) {
	state, err := t.OperationState(ctx, id)
	return state.Pending(), err
}

func (t *Timelock) IsOperationReady(ctx context.Context, id common.Hash) (bool, error) {
	state, err := t.OperationState(ctx, id)
	return state == models.OperationReady, err
}

func (t *Timelock) IsOperationDone(ctx context.Context, id common.Hash) (bool, error) {
	state, err := t.OperationState(ctx, id)
	return state == models.OperationDone, err
}

// Roles returns a copy of the role table
func (t *Timelock) Roles(ctx context.Context) (*models.RoleTable, error) {
	var table *models.RoleTable
	err := t.chain.View(ctx, func(ctx context.Context) error {
		var err error
		table, err = t.repo.GetRoleTable(ctx)
		return err
	})
	return table, err
}

func (t *Timelock) HasRole(ctx context.Context, role models.Role, account common.Address) (bool, error) {
	table, err := t.Roles(ctx)
	if err != nil {
		return false, err
	}
	return table.Has(role, account), nil
}

func (t *Timelock) RoleMembers(ctx context.Context, role models.Role) ([]common.Address, error) {
	table, err := t.Roles(ctx)
	if err != nil {
		return nil, err
	}
	return table.Members[role], nil
}

func normalizeCalls(calls []models.Call) []models.Call {
	out := make([]models.Call, len(calls))
	for i, c := range calls {
		out[i] = c
		if c.Value == nil {
			out[i].Value = new(big.Int)
		}
	}
	return out
}
