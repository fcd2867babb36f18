package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParsePlans(t *testing.T) {
	plans, err := ParsePlans(" Term:150000:120 , annual:400000:365,")
	require.NoError(t, err)
	require.Equal(t, []PaymentPlan{
		{Code: "term", Amount: 150000, Days: 120},
		{Code: "annual", Amount: 400000, Days: 365},
	}, plans)

	for _, raw := range []string{"term:150000", "term:free:120", "term:100:0", ":100:10", "a:1:1,A:2:2"} {
		_, err := ParsePlans(raw)
		require.Error(t, err, raw)
	}
}

func TestLoadReadsPrefixedEnvironment(t *testing.T) {
	t.Setenv("CBT_JWT_SECRET", "s3cret")
	t.Setenv("CBT_JWT_TTL", "90m")
	t.Setenv("CBT_APP_PORT", "9090")
	t.Setenv("CBT_PAYMENT_PLANS", "term:1000:30")
	t.Setenv("CBT_MIDTRANS_PRODUCTION", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, 90*time.Minute, cfg.JWTTTL)
	require.Equal(t, 2*time.Minute, cfg.StatsCacheTTL)
	require.Equal(t, "IDR", cfg.PaymentCurrency)
	require.True(t, cfg.MidtransProduction)
	require.Len(t, cfg.PaymentPlans, 1)
	require.Equal(t, "cbt", cfg.RealtimeChannel)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("CBT_JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("CBT_JWT_SECRET", "s3cret")
	t.Setenv("CBT_STATS_CACHE_TTL", "soon")
	_, err := Load()
	require.ErrorContains(t, err, "stats.cache_ttl")
}
