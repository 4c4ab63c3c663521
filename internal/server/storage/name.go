package storage

import (
	"crypto/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const maxExtLen = 10

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewName returns a fresh storage name: a ULID followed by the lowercased
// extension of original. Nothing else from original survives, so names can
// neither traverse directories nor collide, even across concurrent callers.
func NewName(original string) string {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	entropyMu.Unlock()
	return id.String() + sanitizeExt(original)
}

// NameTime extracts the creation time encoded in a name produced by NewName.
func NameTime(name string) (time.Time, bool) {
	if len(name) < ulid.EncodedSize {
		return time.Time{}, false
	}
	id, err := ulid.ParseStrict(name[:ulid.EncodedSize])
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(id.Time()), true
}

// ValidName reports whether name is a single flat path element.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

func sanitizeExt(original string) string {
	// Windows clients may send full paths.
	base := original
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	ext := strings.ToLower(filepath.Ext(base))
	if len(ext) < 2 || len(ext) > maxExtLen {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
