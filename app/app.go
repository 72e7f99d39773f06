package app

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"governance-project/chain"
	"governance-project/config"
	"governance-project/db"
	"governance-project/governor"
	"governance-project/ledger"
	"governance-project/logger"
	"governance-project/metrics"
	"governance-project/models"
	"governance-project/repository"
	"governance-project/target"
	"governance-project/timelock"
)

const bootstrapParams = "app"

// Deployment nonces of the deployer account
const (
	tokenNonce uint64 = iota
	timelockNonce
	governorNonce
	boxNonce
)

type bootstrapState struct {
	Deployer common.Address `json:"deployer"`
}

// Addresses lists where each component lives
type Addresses struct {
	Deployer common.Address `json:"deployer"`
	Token    common.Address `json:"token"`
	Timelock common.Address `json:"timelock"`
	Governor common.Address `json:"governor"`
	Box      common.Address `json:"box"`
}

// App wires the governance components over one chain
type App struct {
	Config    *config.Config
	Addresses Addresses
	Chain     *chain.Chain
	Repo      *repository.Repository
	Router    *target.Router
	Token     *ledger.Token
	Timelock  *timelock.Timelock
	Governor  *governor.Governor
	Box       *target.Box
	Metrics   *metrics.Metrics
}

// DeriveAddresses computes component addresses from the deployer as contract creation would
func DeriveAddresses(deployer common.Address) Addresses {
	return Addresses{
		Deployer: deployer,
		Token:    crypto.CreateAddress(deployer, tokenNonce),
		Timelock: crypto.CreateAddress(deployer, timelockNonce),
		Governor: crypto.CreateAddress(deployer, governorNonce),
		Box:      crypto.CreateAddress(deployer, boxNonce),
	}
}

// New builds the components over store. reg may be nil to leave metrics unregistered.
func New(cfg *config.Config, store db.Store, reg prometheus.Registerer) (*App, error) {
	deployer, err := cfg.Genesis.DeployerAddress()
	if err != nil {
		return nil, err
	}
	genesis, err := cfg.Chain.Genesis()
	if err != nil {
		return nil, err
	}

	m := metrics.New(reg)
	c, err := chain.New(store, genesis, cfg.Chain.BlockTime, m)
	if err != nil {
		return nil, fmt.Errorf("load chain: %w", err)
	}

	addrs := DeriveAddresses(deployer)
	repo := repository.NewRepository()
	router := target.NewRouter()
	token := ledger.NewToken(c, repo)
	tl := timelock.New(addrs.Timelock, c, repo, router, m)
	gov := governor.New(addrs.Governor, c, repo, token, tl, m)
	box := target.NewBox(addrs.Box, c, repo)
	for _, t := range []target.Target{tl, gov, box} {
		if err := router.Register(t); err != nil {
			return nil, err
		}
	}

	return &App{
		Config:    cfg,
		Addresses: addrs,
		Chain:     c,
		Repo:      repo,
		Router:    router,
		Token:     token,
		Timelock:  tl,
		Governor:  gov,
		Box:       box,
		Metrics:   m,
	}, nil
}

// Bootstrap initializes every component and applies the genesis
// allocations in one transaction. It is a no-op on an already bootstrapped store.
func (a *App) Bootstrap(ctx context.Context) error {
	settings, err := a.Config.Governor.Settings()
	if err != nil {
		return err
	}
	executors, err := a.Config.Timelock.ExecutorAddresses()
	if err != nil {
		return err
	}
	deployer := a.Addresses.Deployer

	var bootstrapped bool
	err = a.Chain.Transact(ctx, func(ctx context.Context) error {
		var st bootstrapState
		found, err := a.Repo.GetParams(ctx, bootstrapParams, &st)
		if err != nil {
			return err
		}
		if found {
			bootstrapped = true
			return nil
		}

		if err := a.Token.Initialize(ctx, deployer); err != nil {
			return err
		}
		if err := a.Timelock.Initialize(ctx, a.Config.Timelock.MinDelay, deployer,
			[]common.Address{a.Addresses.Governor}, executors); err != nil {
			return err
		}
		if err := a.Governor.Initialize(ctx, settings); err != nil {
			return err
		}
		if err := a.Box.Initialize(ctx, a.Addresses.Timelock); err != nil {
			return err
		}

		for _, alloc := range a.Config.Genesis.Allocations {
			holder, amount, delegate, err := alloc.Parse()
			if err != nil {
				return err
			}
			if err := a.Token.Mint(ctx, deployer, holder, amount); err != nil {
				return err
			}
			if err := a.Token.Delegate(ctx, holder, delegate); err != nil {
				return err
			}
		}

		if a.Config.Timelock.RenounceAdmin {
			if err := a.Timelock.RenounceRole(ctx, deployer, models.RoleAdmin, deployer); err != nil {
				return err
			}
		}
		return a.Repo.PutParams(ctx, bootstrapParams, bootstrapState{Deployer: deployer})
	})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if bootstrapped {
		logger.Logger.Info("Governance already deployed", zap.Uint64("head", a.Chain.Head().Number))
		return nil
	}

	logger.Logger.Info("Governance deployed",
		zap.String("deployer", deployer.Hex()),
		zap.String("token", a.Addresses.Token.Hex()),
		zap.String("timelock", a.Addresses.Timelock.Hex()),
		zap.String("governor", a.Addresses.Governor.Hex()),
		zap.String("box", a.Addresses.Box.Hex()),
		zap.Bool("admin_renounced", a.Config.Timelock.RenounceAdmin))
	return nil
}
