package drivers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/hrmcheck/internal/browser/pwdriver"
	"github.com/xkilldash9x/hrmcheck/internal/config"
)

func TestNew(t *testing.T) {
	t.Run("UnknownDriver", func(t *testing.T) {
		_, err := New(context.Background(), config.BrowserConfig{Driver: "selenium"}, zaptest.NewLogger(t))
		var unknown *UnknownDriverError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "selenium", unknown.Name)
	})

	t.Run("PlaywrightIsLazy", func(t *testing.T) {
		l, err := New(context.Background(), config.BrowserConfig{Driver: config.DriverPlaywright}, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.IsType(t, &pwdriver.Launcher{}, l)
		assert.NoError(t, l.Close())
	})
}
