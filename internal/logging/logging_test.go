package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	for _, level := range Levels {
		for _, format := range Formats {
			logger, err := New(level, format)
			require.NoError(t, err, "%s/%s", level, format)
			assert.True(t, logger.Core().Enabled(zap.ErrorLevel))
		}
	}

	logger, err := New("warn", "")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))

	_, err = New("loud", "console")
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.Error(t, err)
}
