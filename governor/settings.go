package governor

import (
	"fmt"
	"math/big"
)

// QuorumDenominator is the scale of the quorum numerator (percent)
const QuorumDenominator = 100

// Settings are the governance parameters. Delays and periods are counted
// in blocks.
type Settings struct {
	VotingDelay       uint64   `json:"voting_delay"`
	VotingPeriod      uint64   `json:"voting_period"`
	ProposalThreshold *big.Int `json:"proposal_threshold"`
	QuorumNumerator   uint64   `json:"quorum_numerator"`
	// QueueGracePeriod is how long a succeeded proposal may wait to be
	// queued before it expires. Zero disables expiry.
	QueueGracePeriod uint64 `json:"queue_grace_period"`
}

func (s Settings) Validate() error {
	if s.VotingPeriod == 0 {
		return fmt.Errorf("%w: voting period must be positive", ErrInvalidSettings)
	}
	if s.QuorumNumerator > QuorumDenominator {
		return fmt.Errorf("%w: quorum numerator %d over %d", ErrInvalidSettings, s.QuorumNumerator, QuorumDenominator)
	}
	if s.ProposalThreshold != nil && s.ProposalThreshold.Sign() < 0 {
		return fmt.Errorf("%w: negative proposal threshold", ErrInvalidSettings)
	}
	return nil
}

func (s Settings) threshold() *big.Int {
	if s.ProposalThreshold == nil {
		return new(big.Int)
	}
	return s.ProposalThreshold
}

// quorumOf scales supply by the numerator
func (s Settings) quorumOf(supply *big.Int) *big.Int {
	q := new(big.Int).Mul(supply, new(big.Int).SetUint64(s.QuorumNumerator))
	return q.Div(q, big.NewInt(QuorumDenominator))
}
