package governor

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"governance-project/chain"
	"governance-project/ledger"
	"governance-project/logger"
	"governance-project/metrics"
	"governance-project/models"
	"governance-project/repository"
)

const paramsName = "governor"

// TimelockQueue is the delayed execution gate the governor hands passed
// proposals to. The governor calls it as its own address.
type TimelockQueue interface {
	Address() common.Address
	MinDelay(ctx context.Context) (time.Duration, error)
	HashOperationBatch(calls []models.Call, predecessor, salt common.Hash) common.Hash
	ScheduleBatch(ctx context.Context, caller common.Address, calls []models.Call, predecessor, salt common.Hash, delay time.Duration) (common.Hash, error)
	ExecuteBatch(ctx context.Context, caller common.Address, calls []models.Call, predecessor, salt common.Hash) error
	OperationState(ctx context.Context, id common.Hash) (models.OperationState, error)
	Timestamp(ctx context.Context, id common.Hash) (time.Time, error)
	HasRole(ctx context.Context, role models.Role, account common.Address) (bool, error)
}

// Governor runs the proposal lifecycle: creation, snapshot voting, quorum
// evaluation and handoff to the timelock.
type Governor struct {
	address  common.Address
	chain    *chain.Chain
	repo     *repository.Repository
	token    ledger.VotingPowerLedger
	timelock TimelockQueue
	metrics  *metrics.Metrics
}

func New(address common.Address, c *chain.Chain, repo *repository.Repository, token ledger.VotingPowerLedger, timelock TimelockQueue, m *metrics.Metrics) *Governor {
	return &Governor{
		address:  address,
		chain:    c,
		repo:     repo,
		token:    token,
		timelock: timelock,
		metrics:  m,
	}
}

func (g *Governor) Address() common.Address {
	return g.address
}

// Initialize stores the starting settings
func (g *Governor) Initialize(ctx context.Context, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	settings.ProposalThreshold = new(big.Int).Set(settings.threshold())
	return g.chain.Transact(ctx, func(ctx context.Context) error {
		var existing Settings
		found, err := g.repo.GetParams(ctx, paramsName, &existing)
		if err != nil {
			return err
		}
		if found {
			return ErrAlreadyInitialized
		}
		return g.repo.PutParams(ctx, paramsName, settings)
	})
}

func (g *Governor) settings(ctx context.Context) (Settings, error) {
	var s Settings
	_, err := g.repo.GetParams(ctx, paramsName, &s)
	return s, err
}

// Propose stores a new proposal and returns its id. Voting opens
// votingDelay blocks from now and lasts votingPeriod blocks.
func (g *Governor) Propose(ctx context.Context, proposer common.Address, targets []common.Address, values []*big.Int, calldatas [][]byte, description string) (common.Hash, error) {
	if len(targets) != len(values) || len(targets) != len(calldatas) {
		return common.Hash{}, fmt.Errorf("%w: %d targets, %d values, %d calldatas",
			ErrInvalidProposalLength, len(targets), len(values), len(calldatas))
	}
	if len(targets) == 0 {
		return common.Hash{}, ErrEmptyProposal
	}
	if err := models.CheckValues(values); err != nil {
		return common.Hash{}, err
	}

	descriptionHash := HashDescription(description)
	id := HashProposal(targets, values, calldatas, descriptionHash)

	var proposal *models.Proposal
	err := g.chain.Transact(ctx, func(ctx context.Context) error {
		existing, err := g.repo.GetProposal(ctx, id)
		if err != nil {
			return err
		}
		if existing != nil {
			state, err := g.state(ctx, existing)
			if err != nil {
				return err
			}
			if !state.IsTerminal() {
				return fmt.Errorf("%w: %s is %s", ErrDuplicateProposal, id.Hex(), state)
			}
			if err := g.repo.DeleteReceipts(ctx, id); err != nil {
				return err
			}
		}

		s, err := g.settings(ctx)
		if err != nil {
			return err
		}
		current := g.token.CurrentPoint(ctx)
		if threshold := s.threshold(); threshold.Sign() > 0 {
			// power at the start of this block, i.e. as of the previous one
			votes, err := g.token.PowerOf(ctx, proposer, current)
			if err != nil {
				return err
			}
			if votes.Cmp(threshold) < 0 {
				return fmt.Errorf("%w: %s has %s, needs %s", ErrBelowThreshold, proposer.Hex(), votes, threshold)
			}
		}

		snapshot := current + s.VotingDelay
		proposal = &models.Proposal{
			ID:              id,
			Proposer:        proposer,
			Targets:         append([]common.Address(nil), targets...),
			Values:          make([]*big.Int, len(values)),
			Calldatas:       make([]hexutil.Bytes, len(calldatas)),
			DescriptionHash: descriptionHash,
			CreatedAt:       current,
			Snapshot:        snapshot,
			Deadline:        snapshot + s.VotingPeriod,
			Tally:           models.NewTally(),
		}
		for i, v := range values {
			proposal.Values[i] = new(big.Int)
			if v != nil {
				proposal.Values[i].Set(v)
			}
		}
		for i, d := range calldatas {
			proposal.Calldatas[i] = append(hexutil.Bytes{}, d...)
		}
		return g.repo.PutProposal(ctx, proposal)
	})
	if err != nil {
		return common.Hash{}, err
	}

	g.metrics.ProposalCreated()
	logger.Logger.Info("Proposal created",
		zap.String("proposal_id", id.Hex()),
		zap.String("proposer", proposer.Hex()),
		zap.Uint64("snapshot", proposal.Snapshot),
		zap.Uint64("deadline", proposal.Deadline),
		zap.String("description", description))
	return id, nil
}

// CastVote records voter's ballot with the weight it held at the snapshot
func (g *Governor) CastVote(ctx context.Context, id common.Hash, voter common.Address, support models.Support) (*big.Int, error) {
	return g.CastVoteWithReason(ctx, id, voter, support, "")
}

func (g *Governor) CastVoteWithReason(ctx context.Context, id common.Hash, voter common.Address, support models.Support, reason string) (*big.Int, error) {
	if !support.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSupport, uint8(support))
	}

	var weight *big.Int
	err := g.chain.Transact(ctx, func(ctx context.Context) error {
		p, err := g.proposal(ctx, id)
		if err != nil {
			return err
		}
		state, err := g.state(ctx, p)
		if err != nil {
			return err
		}
		if state != models.ProposalActive {
			return fmt.Errorf("%w: %s is %s", ErrNotActive, id.Hex(), state)
		}

		receipt, err := g.repo.GetReceipt(ctx, id, voter)
		if err != nil {
			return err
		}
		if receipt != nil && receipt.HasVoted {
			return fmt.Errorf("%w: %s on %s", ErrAlreadyVoted, voter.Hex(), id.Hex())
		}

		weight, err = g.token.PowerOf(ctx, voter, p.Snapshot)
		if err != nil {
			return err
		}
		if weight.Sign() == 0 {
			return fmt.Errorf("%w: %s at %d", ErrZeroWeight, voter.Hex(), p.Snapshot)
		}

		if err := g.repo.PutReceipt(ctx, id, &models.VoteReceipt{
			Voter:    voter,
			HasVoted: true,
			Support:  support,
			Weight:   weight,
			Reason:   reason,
		}); err != nil {
			return err
		}
		p.Tally.Add(support, weight)
		return g.repo.PutProposal(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	g.metrics.VoteCast(support.String())
	logger.Logger.Info("Vote cast",
		zap.String("proposal_id", id.Hex()),
		zap.String("voter", voter.Hex()),
		zap.String("support", support.String()),
		zap.String("weight", weight.String()),
		zap.String("reason", reason))
	return weight, nil
}

// Queue schedules a succeeded proposal in the timelock
func (g *Governor) Queue(ctx context.Context, targets []common.Address, values []*big.Int, calldatas [][]byte, descriptionHash common.Hash) (common.Hash, error) {
	if err := models.CheckValues(values); err != nil {
		return common.Hash{}, err
	}
	id := HashProposal(targets, values, calldatas, descriptionHash)

	var eta time.Time
	err := g.chain.Transact(ctx, func(ctx context.Context) error {
		p, err := g.proposal(ctx, id)
		if err != nil {
			return err
		}
		state, err := g.state(ctx, p)
		if err != nil {
			return err
		}
		if state != models.ProposalSucceeded {
			return fmt.Errorf("%w: %s is %s", ErrNotSucceeded, id.Hex(), state)
		}

		calls := p.Calls()
		salt := timelockSalt(g.address, descriptionHash)
		opID := g.timelock.HashOperationBatch(calls, common.Hash{}, salt)
		opState, err := g.timelock.OperationState(ctx, opID)
		if err != nil {
			return err
		}
		if opState != models.OperationUnset {
			return fmt.Errorf("%w: operation %s is %s", ErrAlreadyQueued, opID.Hex(), opState)
		}

		delay, err := g.timelock.MinDelay(ctx)
		if err != nil {
			return err
		}
		if _, err := g.timelock.ScheduleBatch(ctx, g.address, calls, common.Hash{}, salt, delay); err != nil {
			return err
		}
		if eta, err = g.timelock.Timestamp(ctx, opID); err != nil {
			return err
		}
		p.Eta = eta
		return g.repo.PutProposal(ctx, p)
	})
	if err != nil {
		return common.Hash{}, err
	}

	g.metrics.ProposalQueued()
	logger.Logger.Info("Proposal queued",
		zap.String("proposal_id", id.Hex()), zap.Time("eta", eta))
	return id, nil
}

// Execute runs a queued proposal through the timelock. The proposal is
// marked executed before the batch runs; any failure rolls both back.
func (g *Governor) Execute(ctx context.Context, targets []common.Address, values []*big.Int, calldatas [][]byte, descriptionHash common.Hash) (common.Hash, error) {
	if err := models.CheckValues(values); err != nil {
		return common.Hash{}, err
	}
	id := HashProposal(targets, values, calldatas, descriptionHash)

	err := g.chain.Transact(ctx, func(ctx context.Context) error {
		p, err := g.proposal(ctx, id)
		if err != nil {
			return err
		}
		state, err := g.state(ctx, p)
		if err != nil {
			return err
		}
		if state != models.ProposalQueued {
			return fmt.Errorf("%w: %s is %s", ErrNotQueued, id.Hex(), state)
		}

		p.Executed = true
		if err := g.repo.PutProposal(ctx, p); err != nil {
			return err
		}
		salt := timelockSalt(g.address, descriptionHash)
		return g.timelock.ExecuteBatch(ctx, g.address, p.Calls(), common.Hash{}, salt)
	})
	if err != nil {
		return common.Hash{}, err
	}

	g.metrics.ProposalExecuted()
	logger.Logger.Info("Proposal executed", zap.String("proposal_id", id.Hex()))
	return id, nil
}

// Cancel withdraws a proposal before voting closes. Only the proposer or a
// timelock admin may cancel.
func (g *Governor) Cancel(ctx context.Context, caller common.Address, targets []common.Address, values []*big.Int, calldatas [][]byte, descriptionHash common.Hash) (common.Hash, error) {
	if err := models.CheckValues(values); err != nil {
		return common.Hash{}, err
	}
	id := HashProposal(targets, values, calldatas, descriptionHash)

	err := g.chain.Transact(ctx, func(ctx context.Context) error {
		p, err := g.proposal(ctx, id)
		if err != nil {
			return err
		}
		if caller != p.Proposer {
			isAdmin, err := g.timelock.HasRole(ctx, models.RoleAdmin, caller)
			if err != nil {
				return err
			}
			if !isAdmin {
				return fmt.Errorf("%w: %s may not cancel %s", models.ErrUnauthorized, caller.Hex(), id.Hex())
			}
		}
		state, err := g.state(ctx, p)
		if err != nil {
			return err
		}
		if state != models.ProposalPending && state != models.ProposalActive {
			return fmt.Errorf("%w: %s is %s", ErrNotCancelable, id.Hex(), state)
		}
		p.Canceled = true
		return g.repo.PutProposal(ctx, p)
	})
	if err != nil {
		return common.Hash{}, err
	}

	g.metrics.ProposalCanceled()
	logger.Logger.Info("Proposal canceled",
		zap.String("proposal_id", id.Hex()), zap.String("caller", caller.Hex()))
	return id, nil
}

func (g *Governor) proposal(ctx context.Context, id common.Hash) (*models.Proposal, error) {
	p, err := g.repo.GetProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProposal, id.Hex())
	}
	return p, nil
}

// state evaluates the lifecycle rules against the current block. The
// defeat check reads the live quorum numerator and runs before the
// executed check, so a batch raising the numerator can make its own
// proposal read back as Defeated.
func (g *Governor) state(ctx context.Context, p *models.Proposal) (models.ProposalState, error) {
	if p.Canceled {
		return models.ProposalCanceled, nil
	}
	current := g.token.CurrentPoint(ctx)
	if current < p.Snapshot {
		return models.ProposalPending, nil
	}
	if current <= p.Deadline {
		return models.ProposalActive, nil
	}

	s, err := g.settings(ctx)
	if err != nil {
		return 0, err
	}
	supply, err := g.token.TotalSupplyAt(ctx, p.Snapshot)
	if err != nil {
		return 0, err
	}
	quorumReached := p.Tally.Total().Cmp(s.quorumOf(supply)) >= 0
	if !quorumReached || p.Tally.For.Cmp(p.Tally.Against) <= 0 {
		return models.ProposalDefeated, nil
	}
	if p.Executed {
		return models.ProposalExecuted, nil
	}

	if !p.Queued() {
		if s.QueueGracePeriod > 0 && current > p.Deadline+s.QueueGracePeriod {
			return models.ProposalExpired, nil
		}
		return models.ProposalSucceeded, nil
	}

	opID := g.timelock.HashOperationBatch(p.Calls(), common.Hash{}, timelockSalt(g.address, p.DescriptionHash))
	opState, err := g.timelock.OperationState(ctx, opID)
	if err != nil {
		return 0, err
	}
	switch opState {
	case models.OperationDone:
		return models.ProposalExecuted, nil
	case models.OperationUnset:
		// canceled directly in the timelock
		return models.ProposalCanceled, nil
	}
	return models.ProposalQueued, nil
}

// State returns the lifecycle state of id without changing anything
func (g *Governor) State(ctx context.Context, id common.Hash) (models.ProposalState, error) {
	var state models.ProposalState
	err := g.chain.View(ctx, func(ctx context.Context) error {
		p, err := g.proposal(ctx, id)
		if err != nil {
			return err
		}
		state, err = g.state(ctx, p)
		return err
	})
	return state, err
}

// Proposal returns the stored record of id
func (g *Governor) Proposal(ctx context.Context, id common.Hash) (*models.Proposal, error) {
	var p *models.Proposal
	err := g.chain.View(ctx, func(ctx context.Context) error {
		var err error
		p, err = g.proposal(ctx, id)
		return err
	})
	return p, err
}

// ProposalWithState pairs a stored proposal with its evaluated state
type ProposalWithState struct {
	*models.Proposal
	State models.ProposalState `json:"state"`
}

// Proposals lists every proposal with its current state, oldest first
func (g *Governor) Proposals(ctx context.Context) ([]ProposalWithState, error) {
	var out []ProposalWithState
	err := g.chain.View(ctx, func(ctx context.Context) error {
		proposals, err := g.repo.GetAllProposals(ctx)
		if err != nil {
			return err
		}
		for _, p := range proposals {
			state, err := g.state(ctx, p)
			if err != nil {
				return err
			}
			out = append(out, ProposalWithState{Proposal: p, State: state})
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out, err
}

func (g *Governor) ProposalSnapshot(ctx context.Context, id common.Hash) (uint64, error) {
	p, err := g.Proposal(ctx, id)
	if err != nil {
		return 0, err
	}
	return p.Snapshot, nil
}

func (g *Governor) ProposalDeadline(ctx context.Context, id common.Hash) (uint64, error) {
	p, err := g.Proposal(ctx, id)
	if err != nil {
		return 0, err
	}
	return p.Deadline, nil
}

func (g *Governor) ProposalProposer(ctx context.Context, id common.Hash) (common.Address, error) {
	p, err := g.Proposal(ctx, id)
	if err != nil {
		return common.Address{}, err
	}
	return p.Proposer, nil
}

// ProposalEta is the timelock ready time, zero until queued
func (g *Governor) ProposalEta(ctx context.Context, id common.Hash) (time.Time, error) {
	p, err := g.Proposal(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	return p.Eta, nil
}

func (g *Governor) ProposalVotes(ctx context.Context, id common.Hash) (models.Tally, error) {
	p, err := g.Proposal(ctx, id)
	if err != nil {
		return models.Tally{}, err
	}
	return p.Tally, nil
}

// Receipt returns voter's ballot on id, nil when the voter has not voted
func (g *Governor) Receipt(ctx context.Context, id common.Hash, voter common.Address) (*models.VoteReceipt, error) {
	var receipt *models.VoteReceipt
	err := g.chain.View(ctx, func(ctx context.Context) error {
		if _, err := g.proposal(ctx, id); err != nil {
			return err
		}
		var err error
		receipt, err = g.repo.GetReceipt(ctx, id, voter)
		return err
	})
	return receipt, err
}

// Receipts lists every ballot cast on id
func (g *Governor) Receipts(ctx context.Context, id common.Hash) ([]*models.VoteReceipt, error) {
	var receipts []*models.VoteReceipt
	err := g.chain.View(ctx, func(ctx context.Context) error {
		if _, err := g.proposal(ctx, id); err != nil {
			return err
		}
		var err error
		receipts, err = g.repo.GetReceipts(ctx, id)
		return err
	})
	return receipts, err
}

func (g *Governor) HasVoted(ctx context.Context, id common.Hash, voter common.Address) (bool, error) {
	receipt, err := g.Receipt(ctx, id, voter)
	if err != nil {
		return false, err
	}
	return receipt != nil && receipt.HasVoted, nil
}

// GetVotes returns account's voting power at point
func (g *Governor) GetVotes(ctx context.Context, account common.Address, point uint64) (*big.Int, error) {
	return g.token.PowerOf(ctx, account, point)
}

// Quorum is the participation required at point under the current numerator
func (g *Governor) Quorum(ctx context.Context, point uint64) (*big.Int, error) {
	s, err := g.Settings(ctx)
	if err != nil {
		return nil, err
	}
	supply, err := g.token.TotalSupplyAt(ctx, point)
	if err != nil {
		return nil, err
	}
	return s.quorumOf(supply), nil
}

func (g *Governor) Settings(ctx context.Context) (Settings, error) {
	var s Settings
	err := g.chain.View(ctx, func(ctx context.Context) error {
		var err error
		s, err = g.settings(ctx)
		return err
	})
	return s, err
}

// updateSettings applies fn to the stored settings. Caller must be the timelock.
func (g *Governor) updateSettings(ctx context.Context, caller common.Address, name string, fn func(s *Settings)) error {
	if caller != g.timelock.Address() {
		return fmt.Errorf("%w: %s is governance only", models.ErrUnauthorized, name)
	}
	return g.chain.Transact(ctx, func(ctx context.Context) error {
		s, err := g.settings(ctx)
		if err != nil {
			return err
		}
		fn(&s)
		if err := s.Validate(); err != nil {
			return err
		}
		logger.Logger.Info("Governor setting changed", zap.String("setting", name))
		return g.repo.PutParams(ctx, paramsName, s)
	})
}

func (g *Governor) SetVotingDelay(ctx context.Context, caller common.Address, delay uint64) error {
	return g.updateSettings(ctx, caller, "votingDelay", func(s *Settings) { s.VotingDelay = delay })
}

func (g *Governor) SetVotingPeriod(ctx context.Context, caller common.Address, period uint64) error {
	return g.updateSettings(ctx, caller, "votingPeriod", func(s *Settings) { s.VotingPeriod = period })
}

func (g *Governor) SetProposalThreshold(ctx context.Context, caller common.Address, threshold *big.Int) error {
	if threshold == nil {
		return fmt.Errorf("%w: missing proposal threshold", ErrInvalidSettings)
	}
	return g.updateSettings(ctx, caller, "proposalThreshold", func(s *Settings) {
		s.ProposalThreshold = new(big.Int).Set(threshold)
	})
}

func (g *Governor) UpdateQuorumNumerator(ctx context.Context, caller common.Address, numerator uint64) error {
	return g.updateSettings(ctx, caller, "quorumNumerator", func(s *Settings) { s.QuorumNumerator = numerator })
}

func (g *Governor) SetQueueGracePeriod(ctx context.Context, caller common.Address, period uint64) error {
	return g.updateSettings(ctx, caller, "queueGracePeriod", func(s *Settings) { s.QueueGracePeriod = period })
}
