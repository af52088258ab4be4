package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeRetrievalMetrics_PerfectRetrieval(t *testing.T) {
	m := ComputeRetrievalMetrics([]string{"a", "b"}, []string{"a", "b"}, 2)

	assert.Equal(t, 1.0, m.RecallAtK)
	assert.Equal(t, 1.0, m.PrecisionAtK)
	assert.Equal(t, 1.0, m.MRR)
}

func TestComputeRetrievalMetrics_PartialHit(t *testing.T) {
	m := ComputeRetrievalMetrics([]string{"x", "a", "y", "z"}, []string{"a", "b"}, 4)

	assert.Equal(t, 0.5, m.RecallAtK, "one of two relevant ids found")
	assert.Equal(t, 0.25, m.PrecisionAtK)
	assert.Equal(t, 0.5, m.MRR, "first relevant hit at rank 2")
}

func TestComputeRetrievalMetrics_NoRelevantRetrieved(t *testing.T) {
	m := ComputeRetrievalMetrics([]string{"x", "y"}, []string{"a"}, 2)

	assert.Equal(t, 0.0, m.RecallAtK)
	assert.Equal(t, 0.0, m.PrecisionAtK)
	assert.Equal(t, 0.0, m.MRR)
}

func TestComputeRetrievalMetrics_KLargerThanRetrieved(t *testing.T) {
	m := ComputeRetrievalMetrics([]string{"a"}, []string{"a", "b"}, 5)

	assert.Equal(t, 0.5, m.RecallAtK)
	assert.Equal(t, 1.0, m.PrecisionAtK, "precision uses the actual retrieved count")
	assert.Equal(t, 1.0, m.MRR)
}

func TestComputeRetrievalMetrics_EmptyInputs(t *testing.T) {
	m := ComputeRetrievalMetrics(nil, nil, 5)
	assert.Zero(t, m.RecallAtK)
	assert.Zero(t, m.PrecisionAtK)
	assert.Zero(t, m.MRR)

	m = ComputeRetrievalMetrics(nil, []string{"a"}, 5)
	assert.Zero(t, m.RecallAtK)
}
