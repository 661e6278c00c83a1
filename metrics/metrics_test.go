package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeLabel(t *testing.T) {
	assert.Equal(t, "unknown", sanitizeLabel("   "))
	assert.Equal(t, "google_unofficial", sanitizeLabel(" google_unofficial "))
	assert.NotContains(t, sanitizeLabel("a\nb\tc"), "\n")
	assert.Len(t, sanitizeLabel(strings.Repeat("x", maxLabelLen+10)), maxLabelLen)
}

func TestRecordLookup(t *testing.T) {
	before := testutil.ToFloat64(MemoryLookups.WithLabelValues("hit"))
	RecordLookup("hit")
	RecordLookup("hit")
	assert.Equal(t, before+2, testutil.ToFloat64(MemoryLookups.WithLabelValues("hit")))
}

func TestRecordAttempt(t *testing.T) {
	before := testutil.ToFloat64(ProviderAttempts.WithLabelValues("test_provider", "rate_limited"))
	RecordAttempt("test_provider", "rate_limited", 0.2)
	assert.Equal(t, before+1, testutil.ToFloat64(ProviderAttempts.WithLabelValues("test_provider", "rate_limited")))
}

func TestRecordBatchItem(t *testing.T) {
	okBefore := testutil.ToFloat64(BatchItems.WithLabelValues("success"))
	failBefore := testutil.ToFloat64(BatchItems.WithLabelValues("failure"))

	RecordBatchItem(true)
	RecordBatchItem(false)
	RecordBatchItem(false)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(BatchItems.WithLabelValues("success")))
	assert.Equal(t, failBefore+2, testutil.ToFloat64(BatchItems.WithLabelValues("failure")))
}
