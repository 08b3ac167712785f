package browser

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestXpathLiteral(t *testing.T) {
	require.Equal(t, `'plain'`, xpathLiteral("plain"))
	require.Equal(t, `"it's"`, xpathLiteral("it's"))
	require.Equal(t, `'say "hi"'`, xpathLiteral(`say "hi"`))

	mixed := xpathLiteral(`it's "both"`)
	require.True(t, strings.HasPrefix(mixed, "concat("))
}

func TestTextXPathQuoting(t *testing.T) {
	require.Equal(t, `//*[normalize-space(text())='0001234-56.2023.8.26.0100']`,
		textXPath("0001234-56.2023.8.26.0100"))
}

// a completion left over from an abandoned download must never be
// handed out as the next download's file
func TestDrainDiscardsStaleDownloads(t *testing.T) {
	s := &Session{
		ctx:       context.Background(),
		opts:      Options{DownloadDir: t.TempDir()},
		downloads: make(chan string, 4),
	}
	tab := &Tab{session: s, ctx: context.Background()}

	s.downloads <- "stale-guid-1"
	s.downloads <- "stale-guid-2"
	s.drainDownloads()

	_, err := tab.AwaitDownload(10 * time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestAwaitDownloadAfterDrain(t *testing.T) {
	s := &Session{
		ctx:       context.Background(),
		opts:      Options{DownloadDir: t.TempDir()},
		downloads: make(chan string, 4),
	}
	tab := &Tab{session: s, ctx: context.Background()}

	s.downloads <- "stale-guid"
	s.drainDownloads()
	s.downloads <- "fresh-guid"

	path, err := tab.AwaitDownload(time.Second)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(s.opts.DownloadDir, "fresh-guid"), path)
}
