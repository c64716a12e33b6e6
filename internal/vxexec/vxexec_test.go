package vxexec

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ExitCodePassthrough(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix shell script fixture")
	}
	script := writeScript(t, "#!/bin/sh\nexit 7\n")
	res, err := Run(context.Background(), Request{Executable: script})
	require.NoError(t, err)
	assert.Equal(t, 7, res.ExitCode)
}

func TestRun_Success(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix shell script fixture")
	}
	script := writeScript(t, "#!/bin/sh\nexit 0\n")
	res, err := Run(context.Background(), Request{Executable: script})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRun_SpawnFailedUnknownExecutable(t *testing.T) {
	_, err := Run(context.Background(), Request{Executable: filepath.Join(t.TempDir(), "does-not-exist")})
	require.Error(t, err)
}

func TestRun_TimeoutReported(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix shell script fixture")
	}
	script := writeScript(t, "#!/bin/sh\nsleep 5\n")
	_, err := Run(context.Background(), Request{Executable: script, Timeout: 50 * time.Millisecond})
	require.Error(t, err)
}

func TestBuildEnv_PathPrefixPrepended(t *testing.T) {
	env := buildEnv([]string{"/tool/bin"}, map[string]string{"FOO": "bar"})
	var pathVal, fooVal string
	for _, kv := range env {
		k, v, ok := splitEnv(kv)
		if !ok {
			continue
		}
		switch k {
		case "PATH":
			pathVal = v
		case "FOO":
			fooVal = v
		}
	}
	assert.Equal(t, "bar", fooVal)
	assert.Contains(t, pathVal, "/tool/bin")
}

func TestQuoteForCmd(t *testing.T) {
	assert.Equal(t, "plain", quoteForCmd("plain"))
	assert.Equal(t, `"has space"`, quoteForCmd("has space"))
	assert.Equal(t, `"has\"quote"`, quoteForCmd(`has"quote`))
}

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	return path
}
