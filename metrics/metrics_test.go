package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(ecalls.WithLabelValues("handle", "success"))
	Ecall("handle", "success", 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(ecalls.WithLabelValues("handle", "success")))

	before = testutil.ToFloat64(authFailures.WithLabelValues("failed to verify transaction"))
	AuthFailure("failed to verify transaction")
	assert.Equal(t, before+1, testutil.ToFloat64(authFailures.WithLabelValues("failed to verify transaction")))

	CodeFetch("file-/tmp", "not_found")
	assert.Equal(t, float64(1), testutil.ToFloat64(codeFetches.WithLabelValues("file-/tmp", "not_found")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	Ecall("query", "failure", time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "secret_contract_enclave_enclave_ecalls_total"))
}
