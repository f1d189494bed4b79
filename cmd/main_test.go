package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/latoulicious/kenny/pkg/logging"
	"github.com/latoulicious/kenny/pkg/music"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCatalog(t *testing.T) {
	assert.Empty(t, formatCatalog(nil))

	tracks := make([]music.Track, 10)
	for i := range tracks {
		tracks[i] = music.Track{Title: "Song", Locator: "https://youtube.com/watch?v=x"}
	}
	lines := strings.Split(strings.TrimSuffix(formatCatalog(tracks), "\n"), "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, " 1. Song <https://youtube.com/watch?v=x>", lines[0])
	assert.Equal(t, "10. Song <https://youtube.com/watch?v=x>", lines[9])
}

func TestIsExit(t *testing.T) {
	assert.True(t, isExit("exit"))
	assert.True(t, isExit("  EXIT \n"))
	assert.False(t, isExit("exit now"))
	assert.False(t, isExit(""))
}

func TestWaitForExitReadsConsole(t *testing.T) {
	done := make(chan struct{})
	go func() {
		waitForExit(context.Background(), strings.NewReader("hello\nexit\n"), logging.Nop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("waitForExit did not return after exit")
	}
}

func TestWaitForExitContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// an empty console must not end the wait on its own
	waitForExit(ctx, strings.NewReader(""), logging.Nop())
}

func TestCatalogCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playlist.json")
	data := `{"titles": ["One", "", "Three"], "urls": ["https://youtube.com/watch?v=1", "https://youtube.com/watch?v=2", "https://youtube.com/watch?v=3"]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	run := func(args ...string) string {
		var out bytes.Buffer
		cmd := rootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs(append([]string{"catalog", "--path", path}, args...))
		require.NoError(t, cmd.Execute())
		return out.String()
	}

	out := run()
	assert.Contains(t, out, "1. One <https://youtube.com/watch?v=1>")
	assert.Contains(t, out, "2. Three <https://youtube.com/watch?v=3>")
	assert.Contains(t, out, "1 invalid entries skipped")

	out = run("--prune")
	assert.Contains(t, out, "removed 1 invalid entries")

	out = run()
	assert.NotContains(t, out, "invalid")

	catalog, err := music.LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.Len())
}
