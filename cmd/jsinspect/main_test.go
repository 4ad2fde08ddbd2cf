package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/joeycumines/go-jsenv/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Cleanup(func() {
		logging.SetOutput(nil)
		logging.SetLevel(logging.LevelInfo)
	})
	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func utf16Bytes(s string, bigEndian bool) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, 0, 2+2*len(units))
	if bigEndian {
		b = append(b, 0xFE, 0xFF)
	} else {
		b = append(b, 0xFF, 0xFE)
	}
	for _, u := range units {
		if bigEndian {
			b = append(b, byte(u>>8), byte(u))
		} else {
			b = append(b, byte(u), byte(u>>8))
		}
	}
	return b
}

func TestDecodeScript(t *testing.T) {
	const want = "let s = 'héllo 🌍';\ns;"
	for _, tc := range []struct {
		name string
		in   []byte
	}{
		{"utf8", []byte(want)},
		{"utf8 bom", append([]byte{0xEF, 0xBB, 0xBF}, want...)},
		{"utf16le", utf16Bytes(want, false)},
		{"utf16be", utf16Bytes(want, true)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeScript(tc.in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.Nil(t, cfg.inboundRates())

	path := writeFile(t, "jsinspect.yaml", []byte("listen: 127.0.0.1:0\nlogLevel: debug\ntitle: app\ninboundPerSecond: 50\nwait: true\n"))
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "app", cfg.Title)
	assert.True(t, cfg.Wait)
	assert.False(t, cfg.KeepAlive)
	assert.Equal(t, map[time.Duration]int{time.Second: 50}, cfg.inboundRates())

	cfg, err = loadConfig(writeFile(t, "empty.yaml", nil))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	_, err = loadConfig(writeFile(t, "bad.yaml", []byte("listen: x\nbogus: 1\n")))
	assert.Error(t, err)
	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, `String(eval("a \"b\"\n"))`, stringify("a \"b\"\n"))
}

func TestEvalCommand(t *testing.T) {
	out, _, err := runCLI(t, "eval", "1 + 2")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	out, _, err = runCLI(t, "eval", "--raw", "'raw' + 1")
	require.NoError(t, err)
	assert.Equal(t, "raw1\n", out)

	_, errOut, err := runCLI(t, "eval", "--raw", "40 + 2")
	assert.ErrorIs(t, err, errEvalFailed)
	assert.Contains(t, errOut, "must return a string")

	_, errOut, err = runCLI(t, "eval", "throw new Error('boom')")
	assert.ErrorIs(t, err, errEvalFailed)
	assert.Contains(t, errOut, "JS Exception: Error: boom")

	_, _, err = runCLI(t, "eval", "--log-level", "verbose", "1")
	assert.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	script := writeFile(t, "app.js", []byte("var x = 40;\nx + 2;\n"))
	out, errOut, err := runCLI(t, "run", "--listen", "127.0.0.1:0", script)
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)
	assert.Contains(t, errOut, "Debugger listening on ws://127.0.0.1:")

	config := writeFile(t, "jsinspect.yaml", []byte("listen: 127.0.0.1:0\nlogLevel: error\n"))
	wide := writeFile(t, "wide.js", utf16Bytes("var w = 'wide';\nw + ' script';\n", false))
	out, _, err = runCLI(t, "run", "--config", config, wide)
	require.NoError(t, err)
	assert.Equal(t, "wide script\n", out)

	failing := writeFile(t, "fail.js", []byte("throw new TypeError('bad');"))
	_, _, err = runCLI(t, "run", "--listen", "127.0.0.1:0", failing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TypeError: bad")

	_, _, err = runCLI(t, "run", "--listen", "127.0.0.1:0", filepath.Join(t.TempDir(), "missing.js"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
