package config

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "nowplaying/pkg/logx"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadResolvesExtensionByName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "prefix: \"♪ \"\ninterval: 5\nlyrics:\n  - hello\n  - world\n")

	src := Source{Name: DefaultName, Dirs: []string{dir}}
	st, err := src.Load()
	require.NoError(t, err)

	assert.Equal(t, "♪ ", st.PrefixText())
	assert.Equal(t, "", st.SuffixText())
	assert.False(t, st.Reload)
	assert.Equal(t, []string{"hello", "world"}, st.Lyrics)
	assert.Equal(t, 5*time.Second, st.Interval())

	path, err := src.Resolve()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), path)
}

func TestLoadJSONAndTOML(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		file string
		body string
	}{
		{name: "json", file: "config.json", body: `{"suffix":" ~","reload":true,"interval":2,"lyrics":["a","b","c"]}`},
		{name: "toml", file: "config.toml", body: "suffix = \" ~\"\nreload = true\ninterval = 2\nlyrics = [\"a\", \"b\", \"c\"]\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := writeFile(t, t.TempDir(), tt.file, tt.body)
			st, err := NewSource(p).Load()
			require.NoError(t, err)
			assert.Equal(t, " ~", st.SuffixText())
			assert.True(t, st.Reload)
			assert.Equal(t, uint32(2), st.IntervalSeconds)
			assert.Equal(t, []string{"a", "b", "c"}, st.Lyrics)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.yaml", "interval: 0\n")
	st, err := NewSource(p).Load()
	require.NoError(t, err)

	assert.Nil(t, st.Prefix)
	assert.Nil(t, st.Suffix)
	assert.False(t, st.Reload)
	assert.NotNil(t, st.Lyrics)
	assert.Empty(t, st.Lyrics)

	idle, err := st.IdleDuration()
	require.NoError(t, err)
	assert.Equal(t, DefaultIdleWait, idle)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{name: "missing interval", body: "lyrics: [a]\n"},
		{name: "negative interval", body: "interval: -1\n"},
		{name: "string interval", body: "interval: \"5\"\n"},
		{name: "fractional interval", body: "interval: 2.5\n"},
		{name: "interval wraps to zero", body: "interval: 4294967296\n"},
		{name: "interval above uint32", body: "interval: 5000000000\n"},
		{name: "lyrics not a list", body: "interval: 1\nlyrics: hello\n"},
		{name: "reload not a bool", body: "interval: 1\nreload: \"yes\"\n"},
		{name: "bad idle wait", body: "interval: 1\nidle_wait: soon\n"},
		{name: "malformed yaml", body: "interval: [1\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := writeFile(t, t.TempDir(), "config.yaml", tt.body)
			_, err := NewSource(p).Load()
			require.Error(t, err)
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "want *ParseError, got %T", err)
		})
	}
}

func TestLoadIntervalNumbers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		file    string
		body    string
		want    uint32
		wantErr bool
	}{
		{name: "json integer", file: "config.json", body: `{"interval": 7}`, want: 7},
		{name: "json fraction", file: "config.json", body: `{"interval": 2.5}`, wantErr: true},
		{name: "json above uint32", file: "config.json", body: `{"interval": 4294967296}`, wantErr: true},
		{name: "toml above uint32", file: "config.toml", body: "interval = 5000000000\n", wantErr: true},
		{name: "yaml max uint32", file: "config.yaml", body: "interval: 4294967295\n", want: math.MaxUint32},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := writeFile(t, t.TempDir(), tt.file, tt.body)
			st, err := NewSource(p).Load()
			if tt.wantErr {
				var pe *ParseError
				require.ErrorAs(t, err, &pe)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.IntervalSeconds)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Source{Name: "nope", Dirs: []string{t.TempDir()}}.Load()
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "nope", pe.Path)
}

func TestLoadMissingInterval(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.yaml", "lyrics: [a]\n")
	_, err := NewSource(p).Load()
	assert.ErrorIs(t, err, ErrMissingInterval)
}

func TestLoadReturnsFreshSnapshots(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yaml", "interval: 1\nprefix: a\n")
	src := NewSource(p)

	first, err := src.Load()
	require.NoError(t, err)
	writeFile(t, dir, "config.yaml", "interval: 3\nprefix: b\n")
	second, err := src.Load()
	require.NoError(t, err)

	assert.Equal(t, "a", first.PrefixText())
	assert.Equal(t, uint32(1), first.IntervalSeconds)
	assert.Equal(t, "b", second.PrefixText())
	assert.Equal(t, uint32(3), second.IntervalSeconds)
}

func TestIdleDuration(t *testing.T) {
	t.Parallel()
	zero := "0s"
	half := "500ms"
	neg := "-1s"

	d, err := (&Settings{IdleWait: &zero}).IdleDuration()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), d)

	d, err = (&Settings{IdleWait: &half}).IdleDuration()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, d)

	_, err = (&Settings{IdleWait: &neg}).IdleDuration()
	assert.Error(t, err)
}

func TestDump(t *testing.T) {
	prefix := "♪ "
	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, &Settings{Prefix: &prefix, IntervalSeconds: 5, Lyrics: []string{"hello"}}))

	out := buf.String()
	assert.Contains(t, out, "prefix:")
	assert.Contains(t, out, "♪")
	assert.Contains(t, out, "interval: 5")
	assert.Contains(t, out, "- hello")
	assert.NotContains(t, out, "suffix")
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	a, b := "a", "b"
	oldCfg := &Settings{Prefix: &a, IntervalSeconds: 1, Lyrics: []string{"x"}}
	newCfg := &Settings{Prefix: &b, IntervalSeconds: 2, Lyrics: []string{"x"}}

	changed, attrs := SummarizeChange(oldCfg, newCfg)
	assert.Equal(t, []string{"interval", "prefix"}, changed)
	assert.Len(t, attrs, 2)

	changed, _ = SummarizeChange(newCfg, newCfg)
	assert.Empty(t, changed)

	changed, _ = SummarizeChange(nil, &Settings{Lyrics: []string{"y"}})
	assert.Equal(t, []string{"lyrics"}, changed)
}

func TestWatcherReportsEdits(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yaml", "interval: 1\n")
	writeFile(t, dir, "other.yaml", "x: 1\n")

	var hits atomic.Int32
	w := NewWatcher(p, logx.Nop(), func(ev fsnotify.Event) {
		if strings.HasSuffix(ev.Name, "config.yaml") {
			hits.Add(1)
		}
	})
	w.Debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "other.yaml", "x: 2\n")
	writeFile(t, dir, "config.yaml", "interval: 2\n")

	assert.Eventually(t, func() bool { return hits.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}
