package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the governance collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	proposalsCreated    prometheus.Counter
	proposalsQueued     prometheus.Counter
	proposalsExecuted   prometheus.Counter
	proposalsCanceled   prometheus.Counter
	votesCast           *prometheus.CounterVec
	operationsScheduled prometheus.Counter
	operationsExecuted  prometheus.Counter
	operationsCanceled  prometheus.Counter
	roleChanges         *prometheus.CounterVec
	chainHeight         prometheus.Gauge
}

// New registers the collectors with promRegistry. A nil registry leaves them unregistered.
func New(promRegistry prometheus.Registerer) *Metrics {
	promautoFactory := promauto.With(promRegistry)
	m := &Metrics{}
	m.proposalsCreated = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "governor_proposals_created_total",
		Help: "number of proposals submitted",
	})
	m.proposalsQueued = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "governor_proposals_queued_total",
		Help: "number of proposals queued in the timelock",
	})
	m.proposalsExecuted = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "governor_proposals_executed_total",
		Help: "number of proposals executed",
	})
	m.proposalsCanceled = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "governor_proposals_canceled_total",
		Help: "number of proposals canceled",
	})
	m.votesCast = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "governor_votes_cast_total",
		Help: "number of votes cast by support",
	}, []string{"support"})
	m.operationsScheduled = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "timelock_operations_scheduled_total",
		Help: "number of timelock operations scheduled",
	})
	m.operationsExecuted = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "timelock_operations_executed_total",
		Help: "number of timelock operations executed",
	})
	m.operationsCanceled = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "timelock_operations_canceled_total",
		Help: "number of timelock operations canceled",
	})
	m.roleChanges = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "timelock_role_changes_total",
		Help: "number of role grants and revocations",
	}, []string{"role", "action"})
	m.chainHeight = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "chain_height",
		Help: "current block number",
	})
	return m
}

func (m *Metrics) ProposalCreated() {
	if m == nil {
		return
	}
	m.proposalsCreated.Inc()
}

func (m *Metrics) ProposalQueued() {
	if m == nil {
		return
	}
	m.proposalsQueued.Inc()
}

func (m *Metrics) ProposalExecuted() {
	if m == nil {
		return
	}
	m.proposalsExecuted.Inc()
}

func (m *Metrics) ProposalCanceled() {
	if m == nil {
		return
	}
	m.proposalsCanceled.Inc()
}

func (m *Metrics) VoteCast(support string) {
	if m == nil {
		return
	}
	m.votesCast.WithLabelValues(support).Inc()
}

func (m *Metrics) OperationScheduled() {
	if m == nil {
		return
	}
	m.operationsScheduled.Inc()
}

func (m *Metrics) OperationExecuted() {
	if m == nil {
		return
	}
	m.operationsExecuted.Inc()
}

func (m *Metrics) OperationCanceled() {
	if m == nil {
		return
	}
	m.operationsCanceled.Inc()
}

func (m *Metrics) RoleChanged(role, action string) {
	if m == nil {
		return
	}
	m.roleChanges.WithLabelValues(role, action).Inc()
}

func (m *Metrics) ChainHeight(number uint64) {
	if m == nil {
		return
	}
	m.chainHeight.Set(float64(number))
}
