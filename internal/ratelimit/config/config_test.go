package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/ratelimit/models"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, Limit{3, 5 * time.Minute}, cfg.For(models.ClassCredential))
	assert.Equal(t, Limit{10, time.Minute}, cfg.For(models.ClassVerify))
	assert.Equal(t, Limit{20, time.Minute}, cfg.For(models.ClassAdmin))
	assert.Equal(t, cfg.For(models.ClassCredential), cfg.For("unknown"))
}

func TestWith(t *testing.T) {
	cfg := DefaultConfig().
		With(models.ClassVerify, Limit{Requests: 50, Window: time.Minute}).
		With(models.ClassAdmin, Limit{})

	assert.Equal(t, 50, cfg.For(models.ClassVerify).Requests)
	assert.Equal(t, 20, cfg.For(models.ClassAdmin).Requests)
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in   string
		want Limit
	}{
		{"3/5m", Limit{3, 5 * time.Minute}},
		{" 10/m ", Limit{10, time.Minute}},
		{"100/1h30m", Limit{100, 90 * time.Minute}},
	}
	for _, tt := range tests {
		got, err := ParseLimit(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []string{"", "3", "0/1m", "x/1m", "3/", "3/-1m", "3/fortnight"} {
		_, err := ParseLimit(bad)
		assert.Error(t, err, bad)
	}
}

func TestLimitUnmarshalText(t *testing.T) {
	var l Limit
	require.NoError(t, l.UnmarshalText([]byte("7/30s")))
	assert.Equal(t, "7/30s", l.String())
	assert.Error(t, l.UnmarshalText([]byte("seven")))
}
