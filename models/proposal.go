package models

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ProposalState is the lifecycle position of a proposal
type ProposalState uint8

const (
	ProposalPending ProposalState = iota
	ProposalActive
	ProposalCanceled
	ProposalDefeated
	ProposalSucceeded
	ProposalQueued
	ProposalExpired
	ProposalExecuted
)

var proposalStateNames = [...]string{
	"Pending", "Active", "Canceled", "Defeated", "Succeeded", "Queued", "Expired", "Executed",
}

func (s ProposalState) String() string {
	if int(s) < len(proposalStateNames) {
		return proposalStateNames[s]
	}
	return fmt.Sprintf("ProposalState(%d)", uint8(s))
}

func (s ProposalState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal reports whether no further transition can leave s
func (s ProposalState) IsTerminal() bool {
	switch s {
	case ProposalExecuted, ProposalDefeated, ProposalCanceled, ProposalExpired:
		return true
	}
	return false
}

// Support is a voter's choice
type Support uint8

const (
	SupportAgainst Support = iota
	SupportFor
	SupportAbstain
)

func (s Support) Valid() bool {
	return s <= SupportAbstain
}

func (s Support) String() string {
	switch s {
	case SupportAgainst:
		return "against"
	case SupportFor:
		return "for"
	case SupportAbstain:
		return "abstain"
	}
	return fmt.Sprintf("support(%d)", uint8(s))
}

func (s Support) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid support value %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Support) UnmarshalText(text []byte) error {
	v, err := ParseSupport(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSupport accepts "for", "against", "abstain" or their numeric codes
func ParseSupport(v string) (Support, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "against", "0":
		return SupportAgainst, nil
	case "for", "1":
		return SupportFor, nil
	case "abstain", "2":
		return SupportAbstain, nil
	}
	return 0, fmt.Errorf("invalid support value %q", v)
}

// Tally accumulates vote weight per support bucket
type Tally struct {
	For     *big.Int `json:"for"`
	Against *big.Int `json:"against"`
	Abstain *big.Int `json:"abstain"`
}

func NewTally() Tally {
	return Tally{For: new(big.Int), Against: new(big.Int), Abstain: new(big.Int)}
}

// Add credits weight to the bucket for support
func (t *Tally) Add(support Support, weight *big.Int) {
	switch support {
	case SupportFor:
		t.For = new(big.Int).Add(t.For, weight)
	case SupportAgainst:
		t.Against = new(big.Int).Add(t.Against, weight)
	case SupportAbstain:
		t.Abstain = new(big.Int).Add(t.Abstain, weight)
	}
}

// Total is for + against + abstain
func (t Tally) Total() *big.Int {
	total := new(big.Int).Add(t.For, t.Against)
	return total.Add(total, t.Abstain)
}

// Proposal is the stored record of a governance proposal. The description
// itself is not kept, only its hash.
type Proposal struct {
	ID              common.Hash      `json:"id"`
	Proposer        common.Address   `json:"proposer"`
	Targets         []common.Address `json:"targets"`
	Values          []*big.Int       `json:"values"`
	Calldatas       []hexutil.Bytes  `json:"calldatas"`
	DescriptionHash common.Hash      `json:"description_hash"`
	CreatedAt       uint64           `json:"created_at"`
	Snapshot        uint64           `json:"snapshot"`
	Deadline        uint64           `json:"deadline"`
	Tally           Tally            `json:"tally"`
	Eta             time.Time        `json:"eta"`
	Canceled        bool             `json:"canceled"`
	Executed        bool             `json:"executed"`
}

// Calls returns the proposal batch as timelock calls
func (p *Proposal) Calls() []Call {
	calls := make([]Call, len(p.Targets))
	for i := range p.Targets {
		calls[i] = Call{Target: p.Targets[i], Value: p.Values[i], Data: p.Calldatas[i]}
	}
	return calls
}

// Queued reports whether the proposal has been handed to the timelock
func (p *Proposal) Queued() bool {
	return !p.Eta.IsZero()
}

// VoteReceipt records one voter's ballot on one proposal
type VoteReceipt struct {
	Voter    common.Address `json:"voter"`
	HasVoted bool           `json:"has_voted"`
	Support  Support        `json:"support"`
	Weight   *big.Int       `json:"weight"`
	Reason   string         `json:"reason,omitempty"`
}
