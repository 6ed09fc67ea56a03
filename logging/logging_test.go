package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingWriter_Rotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	w, err := OpenRotating(path, 16)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte(strings.Repeat("a", 20)))
	require.NoError(t, err)
	_, err = w.Write([]byte("fresh"))
	require.NoError(t, err)

	backup, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Len(t, backup, 20)

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(current))
}

func TestSetup_Level(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, rw, err := Setup(path, "debug")
	require.NoError(t, err)
	defer rw.Close()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.Info("hello")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")

	assert.Equal(t, logrus.InfoLevel, parseLevel("loud"))
}
