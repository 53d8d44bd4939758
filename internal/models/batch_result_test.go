package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBatchSummaryAggregates(t *testing.T) {
	s := NewBatchSummary(2, 0)

	s.AddResult(CallResult{Operation: "a", StatusCode: 200, Duration: 10 * time.Millisecond})
	s.AddResult(CallResult{Operation: "b", StatusCode: 200, Duration: 30 * time.Millisecond})
	s.AddResult(CallResult{Operation: "c", StatusCode: 401, Kind: "authentication_failure", Error: "denied"})
	s.AddResult(CallResult{Operation: "d", Kind: "missing_path_parameter", Error: "missing"})
	s.Finalize(time.Second)

	assert.Equal(t, 4, s.TotalCalls)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 50.0, s.ErrorRate)
	assert.Equal(t, map[string]int{"authentication_failure": 1, "missing_path_parameter": 1}, s.FailuresByKind)
	assert.Equal(t, map[int]int{200: 2, 401: 1}, s.StatusCodes)
	assert.Equal(t, 10*time.Millisecond, s.MinTime)
	assert.Equal(t, 30*time.Millisecond, s.MaxTime)
	assert.Equal(t, 20*time.Millisecond, s.AvgTime)
	assert.Equal(t, 20*time.Millisecond, s.P50Time)
	assert.Equal(t, 4.0, s.RequestsPerSec)
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5}

	assert.Equal(t, time.Duration(1), Percentile(sorted, 0))
	assert.Equal(t, time.Duration(3), Percentile(sorted, 50))
	assert.Equal(t, time.Duration(5), Percentile(sorted, 100))
	assert.Equal(t, time.Duration(0), Percentile(nil, 50))
}

func TestParseLocation(t *testing.T) {
	loc, ok := ParseLocation("Query")
	assert.True(t, ok)
	assert.Equal(t, LocationQuery, loc)

	_, ok = ParseLocation("body")
	assert.False(t, ok)
}

func TestParseParamType(t *testing.T) {
	assert.Equal(t, TypeInteger, ParseParamType("integer"))
	assert.Equal(t, TypeString, ParseParamType(""))
	assert.Equal(t, TypeString, ParseParamType("file"))
}
