package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"governance-project/chain"
	"governance-project/logger"
	"governance-project/models"
	"governance-project/repository"
)

var (
	// ErrFutureLookup is returned for point-in-time reads past the current block
	ErrFutureLookup = errors.New("future lookup")

	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrAlreadyInitialized = errors.New("token already initialized")
)

// VotingPowerLedger is the point-in-time voting power view consumed by the
// governor. Values at a point never change once that point is reached.
type VotingPowerLedger interface {
	PowerOf(ctx context.Context, account common.Address, point uint64) (*big.Int, error)
	TotalSupplyAt(ctx context.Context, point uint64) (*big.Int, error)
	CurrentPoint(ctx context.Context) uint64
}

const paramsName = "token"

type tokenParams struct {
	Owner common.Address `json:"owner"`
}

// Token is a checkpointed votes token. Voting power follows delegation:
// an account's balance counts for its delegate, and undelegated balances
// count for nobody. Every write is checkpointed at the current block, and
// lookups at point p read the state at the start of p.
type Token struct {
	chain *chain.Chain
	repo  *repository.Repository
}

func NewToken(c *chain.Chain, repo *repository.Repository) *Token {
	return &Token{chain: c, repo: repo}
}

var _ VotingPowerLedger = (*Token)(nil)

// Initialize records the account allowed to mint
func (t *Token) Initialize(ctx context.Context, owner common.Address) error {
	return t.chain.Transact(ctx, func(ctx context.Context) error {
		var params tokenParams
		found, err := t.repo.GetParams(ctx, paramsName, &params)
		if err != nil {
			return err
		}
		if found {
			return ErrAlreadyInitialized
		}
		return t.repo.PutParams(ctx, paramsName, tokenParams{Owner: owner})
	})
}

// Mint creates amount new tokens for to, owner only
func (t *Token) Mint(ctx context.Context, caller, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	err := t.chain.Transact(ctx, func(ctx context.Context) error {
		var params tokenParams
		if _, err := t.repo.GetParams(ctx, paramsName, &params); err != nil {
			return err
		}
		if caller != params.Owner {
			return fmt.Errorf("%w: %s may not mint", models.ErrUnauthorized, caller.Hex())
		}

		point := t.chain.Head().Number
		account, err := t.repo.GetAccount(ctx, to)
		if err != nil {
			return err
		}
		account.Balance = new(big.Int).Add(account.Balance, amount)
		if err := t.repo.PutAccount(ctx, account); err != nil {
			return err
		}

		supply, err := t.repo.GetSupply(ctx)
		if err != nil {
			return err
		}
		supply = supply.Push(point, new(big.Int).Add(supply.Latest(), amount))
		if err := t.repo.PutSupply(ctx, supply); err != nil {
			return err
		}
		return t.moveVotingPower(ctx, common.Address{}, account.Delegate, amount, point)
	})
	if err != nil {
		return err
	}
	logger.Logger.Info("Tokens minted",
		zap.String("to", to.Hex()), zap.String("amount", amount.String()))
	return nil
}

// Transfer moves amount from one holder to another, carrying voting power with it
func (t *Token) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return t.chain.Transact(ctx, func(ctx context.Context) error {
		src, err := t.repo.GetAccount(ctx, from)
		if err != nil {
			return err
		}
		if src.Balance.Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s has %s, needs %s",
				models.ErrInsufficientBalance, from.Hex(), src.Balance, amount)
		}
		if from == to {
			return nil
		}
		dst, err := t.repo.GetAccount(ctx, to)
		if err != nil {
			return err
		}
		src.Balance = new(big.Int).Sub(src.Balance, amount)
		dst.Balance = new(big.Int).Add(dst.Balance, amount)
		if err := t.repo.PutAccount(ctx, src); err != nil {
			return err
		}
		if err := t.repo.PutAccount(ctx, dst); err != nil {
			return err
		}
		return t.moveVotingPower(ctx, src.Delegate, dst.Delegate, amount, t.chain.Head().Number)
	})
}

// Delegate points account's voting power at delegatee; the zero address undelegates
func (t *Token) Delegate(ctx context.Context, account, delegatee common.Address) error {
	return t.chain.Transact(ctx, func(ctx context.Context) error {
		holder, err := t.repo.GetAccount(ctx, account)
		if err != nil {
			return err
		}
		previous := holder.Delegate
		holder.Delegate = delegatee
		if err := t.repo.PutAccount(ctx, holder); err != nil {
			return err
		}
		return t.moveVotingPower(ctx, previous, delegatee, holder.Balance, t.chain.Head().Number)
	})
}

func (t *Token) moveVotingPower(ctx context.Context, from, to common.Address, amount *big.Int, point uint64) error {
	if from == to || amount.Sign() == 0 {
		return nil
	}
	if from != (common.Address{}) {
		account, err := t.repo.GetAccount(ctx, from)
		if err != nil {
			return err
		}
		account.Votes = account.Votes.Push(point, new(big.Int).Sub(account.Votes.Latest(), amount))
		if err := t.repo.PutAccount(ctx, account); err != nil {
			return err
		}
	}
	if to != (common.Address{}) {
		account, err := t.repo.GetAccount(ctx, to)
		if err != nil {
			return err
		}
		account.Votes = account.Votes.Push(point, new(big.Int).Add(account.Votes.Latest(), amount))
		if err := t.repo.PutAccount(ctx, account); err != nil {
			return err
		}
	}
	return nil
}

func (t *Token) account(ctx context.Context, address common.Address) (*models.Account, error) {
	var account *models.Account
	err := t.chain.View(ctx, func(ctx context.Context) error {
		var err error
		account, err = t.repo.GetAccount(ctx, address)
		return err
	})
	return account, err
}

// Account returns the stored record of address
func (t *Token) Account(ctx context.Context, address common.Address) (*models.Account, error) {
	return t.account(ctx, address)
}

func (t *Token) BalanceOf(ctx context.Context, address common.Address) (*big.Int, error) {
	account, err := t.account(ctx, address)
	if err != nil {
		return nil, err
	}
	return account.Balance, nil
}

func (t *Token) Delegates(ctx context.Context, address common.Address) (common.Address, error) {
	account, err := t.account(ctx, address)
	if err != nil {
		return common.Address{}, err
	}
	return account.Delegate, nil
}

// GetVotes returns the latest voting power of address
func (t *Token) GetVotes(ctx context.Context, address common.Address) (*big.Int, error) {
	account, err := t.account(ctx, address)
	if err != nil {
		return nil, err
	}
	return account.Votes.Latest(), nil
}

// GetPastVotes returns the voting power of address at the start of point
func (t *Token) GetPastVotes(ctx context.Context, address common.Address, point uint64) (*big.Int, error) {
	if current := t.chain.Head().Number; point > current {
		return nil, fmt.Errorf("%w: point %d, current %d", ErrFutureLookup, point, current)
	}
	account, err := t.account(ctx, address)
	if err != nil {
		return nil, err
	}
	return account.Votes.At(point), nil
}

// GetPastTotalSupply returns the total supply at the start of point
func (t *Token) GetPastTotalSupply(ctx context.Context, point uint64) (*big.Int, error) {
	if current := t.chain.Head().Number; point > current {
		return nil, fmt.Errorf("%w: point %d, current %d", ErrFutureLookup, point, current)
	}
	var supply models.Trace
	err := t.chain.View(ctx, func(ctx context.Context) error {
		var err error
		supply, err = t.repo.GetSupply(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return supply.At(point), nil
}

func (t *Token) TotalSupply(ctx context.Context) (*big.Int, error) {
	var supply models.Trace
	err := t.chain.View(ctx, func(ctx context.Context) error {
		var err error
		supply, err = t.repo.GetSupply(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return supply.Latest(), nil
}

func (t *Token) PowerOf(ctx context.Context, account common.Address, point uint64) (*big.Int, error) {
	return t.GetPastVotes(ctx, account, point)
}

func (t *Token) TotalSupplyAt(ctx context.Context, point uint64) (*big.Int, error) {
	return t.GetPastTotalSupply(ctx, point)
}

func (t *Token) CurrentPoint(ctx context.Context) uint64 {
	return t.chain.Head().Number
}
