package tail

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/SteelMorgan/autometrics-agent/internal/fileid"
	"github.com/rs/zerolog/log"
)

// compressedSuffixes mark archived rotation members; they cannot be tailed by offset
var compressedSuffixes = []string{".gz", ".bz2", ".xz", ".zip", ".zst", ".lz4"}

// Member is one file of a rotation family
type Member struct {
	Path    string
	ID      fileid.Identity
	ModTime time.Time
}

// ListFamily returns the files matching base* ordered by modification time
// (oldest first). Members with equal modification times keep the lexical
// order of the directory listing.
func ListFamily(base string) ([]Member, error) {
	matches, err := filepath.Glob(base + "*")
	if err != nil {
		return nil, fmt.Errorf("failed to list rotation family of %s: %w", base, err)
	}

	members := make([]Member, 0, len(matches))
	for _, path := range matches {
		if isCompressed(path) {
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			// Rotated away between glob and stat
			log.Debug().Err(err).Str("file", path).Msg("Skipping rotation member")
			continue
		}
		if info.IsDir() {
			continue
		}

		id, err := fileid.Stat(path)
		if err != nil {
			log.Debug().Err(err).Str("file", path).Msg("Skipping rotation member")
			continue
		}

		members = append(members, Member{
			Path:    path,
			ID:      id,
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(members, func(i, j int) bool {
		return members[i].ModTime.Before(members[j].ModTime)
	})

	return members, nil
}

// findMember returns the member with the given identity
func findMember(members []Member, id fileid.Identity) (Member, bool) {
	for _, m := range members {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

// nextTarget picks the file that chronologically follows the one identified
// by current. When current is not in the family any more, the oldest member
// modified after currentMod is chosen so intermediate rotations are not
// skipped. The base path is the final fallback.
func nextTarget(base string, members []Member, current fileid.Identity, currentMod time.Time) string {
	for i, m := range members {
		if m.ID != current {
			continue
		}
		if i+1 < len(members) {
			return members[i+1].Path
		}
		return base
	}

	if currentMod.IsZero() {
		return base
	}
	for _, m := range members {
		if m.ModTime.After(currentMod) {
			return m.Path
		}
	}
	return base
}

func isCompressed(path string) bool {
	lower := strings.ToLower(path)
	for _, suffix := range compressedSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
