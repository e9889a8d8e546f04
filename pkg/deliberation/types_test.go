package deliberation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConsensusMethod_Validate(t *testing.T) {
	assert.NoError(t, MethodWeighted.Validate())
	assert.NoError(t, MethodMajority.Validate())
	assert.NoError(t, MethodUnanimous.Validate())
	assert.Error(t, ConsensusMethod("plurality").Validate())
	assert.Error(t, ConsensusMethod("").Validate())
}

func TestRequest_Validate(t *testing.T) {
	valid := Request{
		Query:          "should we split the billing module?",
		Method:         MethodWeighted,
		RoundTimeout:   30 * time.Second,
		PersonaTimeout: 10 * time.Second,
	}

	tests := []struct {
		name          string
		mutate        func(*Request)
		errorContains string
	}{
		{
			name:   "valid request",
			mutate: func(r *Request) {},
		},
		{
			name:          "empty query",
			mutate:        func(r *Request) { r.Query = "" },
			errorContains: "query",
		},
		{
			name:          "unknown method",
			mutate:        func(r *Request) { r.Method = "plurality" },
			errorContains: "consensus method",
		},
		{
			name:          "zero persona timeout",
			mutate:        func(r *Request) { r.PersonaTimeout = 0 },
			errorContains: "persona timeout",
		},
		{
			name:          "round timeout not above persona timeout",
			mutate:        func(r *Request) { r.RoundTimeout = r.PersonaTimeout },
			errorContains: "must exceed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			err := req.Validate()
			if tt.errorContains == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
			}
		})
	}
}

func TestResult_Reached(t *testing.T) {
	reached := Result{Decision: "proceed", Confidence: 0.7}
	assert.True(t, reached.Reached())

	// The no-consensus shape: empty decision, zero confidence.
	noConsensus := Result{}
	assert.False(t, noConsensus.Reached())
}
