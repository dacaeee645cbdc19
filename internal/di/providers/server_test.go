package providers

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subtitlelens/subtitlelens-server/internal/config"
)

func TestAnnotatorOptions_UsesPipelineTiming(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PIPELINE_SETTLE_DELAY", "40ms")
	t.Setenv("PIPELINE_DEDUP_WINDOW", "3s")

	cfg, err := config.LoadConfigFrom(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-env-file", "missing.env"})
	require.NoError(t, err)

	opts := annotatorOptions(cfg)

	assert.Equal(t, 40*time.Millisecond, opts.SettleDelay)
	assert.Equal(t, 40*time.Millisecond, opts.Observer.SettleDelay)
	assert.Equal(t, 3*time.Second, opts.Observer.DedupWindow)
}
