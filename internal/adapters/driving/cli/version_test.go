package cli

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withVersion(t *testing.T, v string) {
	t.Helper()
	previous := version
	SetVersion(v)
	t.Cleanup(func() { version = previous })
}

func TestVersionCmd(t *testing.T) {
	withVersion(t, "0.4.1")

	out, err := execute(t, nil, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lorekeeper version 0.4.1 (")
	assert.Contains(t, out, runtime.GOOS+"/"+runtime.GOARCH)

	out, err = execute(t, nil, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "0.4.1\n", out)
}

func TestSetVersion_IgnoresEmpty(t *testing.T) {
	withVersion(t, "dev")
	SetVersion("")
	assert.Equal(t, "dev", version)
}

func TestVersionCmd_RejectsArgs(t *testing.T) {
	_, err := execute(t, nil, "version", "extra")
	assert.Error(t, err)
}
