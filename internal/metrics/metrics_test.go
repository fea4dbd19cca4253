package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveSignCountsByOutcome(t *testing.T) {
	ok := signaturesTotal.WithLabelValues("TEST_TYPE", ResultSuccess)
	bad := signaturesTotal.WithLabelValues("TEST_TYPE", ResultError)
	beforeOK, beforeBad := testutil.ToFloat64(ok), testutil.ToFloat64(bad)

	ObserveSign("TEST_TYPE", nil, time.Now())
	ObserveSign("TEST_TYPE", errors.New("boom"), time.Now())
	ObserveSign("TEST_TYPE", nil, time.Now())

	require.Equal(t, beforeOK+2, testutil.ToFloat64(ok))
	require.Equal(t, beforeBad+1, testutil.ToFloat64(bad))
}

func TestOpenSeedsGauge(t *testing.T) {
	before := testutil.ToFloat64(openSeeds)
	SeedOpened()
	SeedOpened()
	SeedClosed()
	require.Equal(t, before+1, testutil.ToFloat64(openSeeds))
	SeedClosed()
}

func TestObserveUnlock(t *testing.T) {
	c := seedUnlocksTotal.WithLabelValues("throttled")
	before := testutil.ToFloat64(c)
	ObserveUnlock("throttled")
	require.Equal(t, before+1, testutil.ToFloat64(c))
}
