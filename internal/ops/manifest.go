package ops

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ManifestName is the archive entry holding the file digests. It is written last.
const ManifestName = "MANIFEST.json"

var (
	ErrMissingManifest = errors.New("archive has no manifest")
	ErrDigestMismatch  = errors.New("restored file does not match manifest")
)

type FileDigest struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

type Manifest struct {
	Version   int          `json:"version"`
	CreatedAt time.Time    `json:"createdAt"`
	Files     []FileDigest `json:"files"`
}

// Digest folds every file digest into one value, independent of walk order.
func (m Manifest) Digest() string {
	files := append([]FileDigest(nil), m.Files...)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	h := sha256.New()
	for _, f := range files {
		fmt.Fprintf(h, "%s\n%d\n%s\n", f.Path, f.Size, f.SHA256)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (m Manifest) lookup() map[string]FileDigest {
	out := make(map[string]FileDigest, len(m.Files))
	for _, f := range m.Files {
		out[f.Path] = f
	}
	return out
}

// DirManifest hashes every regular file under root.
func DirManifest(root string) (Manifest, error) {
	root = filepath.Clean(root)
	m := Manifest{Version: 1, CreatedAt: time.Now().UTC()}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == ManifestName {
			return nil
		}
		fd, err := hashFile(path)
		if err != nil {
			return err
		}
		fd.Path = rel
		m.Files = append(m.Files, fd)
		return nil
	})
	if err != nil {
		return Manifest{}, err
	}
	sort.Slice(m.Files, func(i, j int) bool { return m.Files[i].Path < m.Files[j].Path })
	return m, nil
}

func hashFile(path string) (FileDigest, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileDigest{}, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return FileDigest{}, err
	}
	return FileDigest{Size: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}
