package util

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaiseInvariant(t *testing.T) {
	invariantsMetric.Reset()

	RaiseInvariant("util", "test", "invariant %d violated", 1)
	RaiseInvariant("util", "test", "invariant %d violated", 2)

	assert.Equal(t, 2, InvariantCount("util", "test"))
	assert.Equal(t, 0, InvariantCount("util", "other"))
}

func TestWriteInvariantMetrics(t *testing.T) {
	invariantsMetric.Reset()

	var empty bytes.Buffer
	require.NoError(t, WriteInvariantMetrics(&empty))
	assert.Empty(t, empty.String(), "no output before the first violation")

	RaiseInvariant("segment", "ordinal_collision", "collision")

	var buf bytes.Buffer
	require.NoError(t, WriteInvariantMetrics(&buf))
	assert.Contains(t, buf.String(), "# TYPE skv_invariant_violations_total counter")
	assert.Contains(t, buf.String(), `skv_invariant_violations_total{module="segment",type="ordinal_collision"} 1`)
}
