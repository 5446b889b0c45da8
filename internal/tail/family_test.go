package tail

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SteelMorgan/autometrics-agent/internal/fileid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFamily(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "app.log")

	writeFile(t, base, "")
	writeFile(t, base+".1", "")
	writeFile(t, base+".2", "")
	writeFile(t, base+".3.gz", "")
	writeFile(t, filepath.Join(dir, "other.log"), "")
	require.NoError(t, os.Mkdir(base+".d", 0755))

	setMtime(t, base, baseTime.Add(3*time.Minute))
	setMtime(t, base+".1", baseTime.Add(2*time.Minute))
	setMtime(t, base+".2", baseTime.Add(1*time.Minute))

	members, err := ListFamily(base)
	require.NoError(t, err)

	paths := make([]string, len(members))
	for i, m := range members {
		paths[i] = filepath.Base(m.Path)
	}
	assert.Equal(t, []string{"app.log.2", "app.log.1", "app.log"}, paths)
}

func TestListFamilyTiesKeepListingOrder(t *testing.T) {
	base := filepath.Join(t.TempDir(), "app.log")
	for _, name := range []string{base, base + ".1", base + ".2"} {
		writeFile(t, name, "")
		setMtime(t, name, baseTime)
	}

	members, err := ListFamily(base)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, base, members[0].Path)
	assert.Equal(t, base+".2", members[2].Path)
}

func TestNextTarget(t *testing.T) {
	a := Member{Path: "/l/app.log.2", ID: fileid.Identity{Dev: 1, Ino: 1}, ModTime: baseTime}
	b := Member{Path: "/l/app.log.1", ID: fileid.Identity{Dev: 1, Ino: 2}, ModTime: baseTime.Add(time.Minute)}
	c := Member{Path: "/l/app.log", ID: fileid.Identity{Dev: 1, Ino: 3}, ModTime: baseTime.Add(2 * time.Minute)}
	members := []Member{a, b, c}

	tests := []struct {
		name       string
		current    fileid.Identity
		currentMod time.Time
		want       string
	}{
		{name: "oldest advances to middle", current: a.ID, want: b.Path},
		{name: "middle advances to newest", current: b.ID, want: c.Path},
		{name: "newest falls back to base", current: c.ID, want: "/l/app.log"},
		{
			name:       "vanished file picks first newer member",
			current:    fileid.Identity{Dev: 1, Ino: 99},
			currentMod: baseTime.Add(30 * time.Second),
			want:       b.Path,
		},
		{
			name:       "vanished newest file falls back to base",
			current:    fileid.Identity{Dev: 1, Ino: 99},
			currentMod: baseTime.Add(time.Hour),
			want:       "/l/app.log",
		},
		{
			name:    "unknown modification time falls back to base",
			current: fileid.Identity{Dev: 1, Ino: 99},
			want:    "/l/app.log",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextTarget("/l/app.log", members, tt.current, tt.currentMod))
		})
	}
}
