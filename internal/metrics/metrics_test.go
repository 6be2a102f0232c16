package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordAttempt(t *testing.T) {
	before := testutil.ToFloat64(LoginAttempts.WithLabelValues(OutcomeFailed))
	RecordAttempt(OutcomeFailed)
	RecordAttempt(OutcomeFailed)
	assert.Equal(t, before+2, testutil.ToFloat64(LoginAttempts.WithLabelValues(OutcomeFailed)))
}

func TestObserveAuthRequest(t *testing.T) {
	ObserveAuthRequest("2xx", 15*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(AuthRequestDuration), 1)
}
