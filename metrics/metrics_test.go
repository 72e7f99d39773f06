package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"governance-project/metrics"
)

func TestMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ProposalCreated()
	m.VoteCast("for")
	m.VoteCast("for")
	m.ChainHeight(42)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["governor_proposals_created_total"])
	assert.True(t, names["governor_votes_cast_total"])
	assert.True(t, names["chain_height"])

	count, err := testutil.GatherAndCount(reg, "governor_votes_cast_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ProposalCreated()
		m.VoteCast("against")
		m.RoleChanged("ADMIN", "revoke")
		m.ChainHeight(1)
	})
}
