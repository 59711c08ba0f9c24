package ops

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// BackupDataDir archives every regular file under srcDir into a tar.gz and
// appends a manifest of their sha256 digests.
func BackupDataDir(srcDir, archivePath string) (Manifest, error) {
	srcDir = filepath.Clean(strings.TrimSpace(srcDir))
	archivePath = filepath.Clean(strings.TrimSpace(archivePath))
	if srcDir == "" || archivePath == "" {
		return Manifest{}, fmt.Errorf("srcDir and archivePath are required")
	}
	info, err := os.Stat(srcDir)
	if err != nil {
		return Manifest{}, err
	}
	if !info.IsDir() {
		return Manifest{}, fmt.Errorf("source is not a directory: %s", srcDir)
	}
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return Manifest{}, err
	}

	paths, err := collectFiles(srcDir)
	if err != nil {
		return Manifest{}, err
	}

	f, err := os.Create(archivePath)
	if err != nil {
		return Manifest{}, err
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	m := Manifest{Version: 1, CreatedAt: time.Now().UTC()}
	for _, rel := range paths {
		fd, err := addFile(tw, srcDir, rel)
		if err != nil {
			return Manifest{}, fmt.Errorf("archive %s: %w", rel, err)
		}
		m.Files = append(m.Files, fd)
	}

	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return Manifest{}, err
	}
	if err := tw.WriteHeader(&tar.Header{
		Name:     ManifestName,
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     int64(len(body)),
		ModTime:  m.CreatedAt,
	}); err != nil {
		return Manifest{}, err
	}
	if _, err := tw.Write(body); err != nil {
		return Manifest{}, err
	}

	if err := tw.Close(); err != nil {
		return Manifest{}, err
	}
	if err := gz.Close(); err != nil {
		return Manifest{}, err
	}
	return m, f.Close()
}

func collectFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		// Symlinks and other special files are skipped.
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
		out = append(out, rel)
		return nil
	})
	sort.Strings(out)
	return out, err
}

func addFile(tw *tar.Writer, root, rel string) (FileDigest, error) {
	path := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(path)
	if err != nil {
		return FileDigest{}, err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return FileDigest{}, err
	}
	hdr.Name = rel
	if err := tw.WriteHeader(hdr); err != nil {
		return FileDigest{}, err
	}

	src, err := os.Open(path)
	if err != nil {
		return FileDigest{}, err
	}
	defer src.Close()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tw, h), src)
	if err != nil {
		return FileDigest{}, err
	}
	return FileDigest{Path: rel, Size: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}

// RestoreDataDir extracts archivePath into targetDir and checks every file
// against the archive manifest.
func RestoreDataDir(archivePath, targetDir string) (Manifest, error) {
	archivePath = filepath.Clean(strings.TrimSpace(archivePath))
	targetDir = filepath.Clean(strings.TrimSpace(targetDir))
	if archivePath == "" || targetDir == "" {
		return Manifest{}, fmt.Errorf("archivePath and targetDir are required")
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return Manifest{}, err
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return Manifest{}, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return Manifest{}, err
	}
	defer gz.Close()

	var (
		manifest *Manifest
		restored = map[string]FileDigest{}
	)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Manifest{}, err
		}

		rel, err := sanitizeArchiveRelPath(hdr.Name)
		if err != nil {
			return Manifest{}, err
		}

		if rel == ManifestName {
			var m Manifest
			if err := json.NewDecoder(tr).Decode(&m); err != nil {
				return Manifest{}, fmt.Errorf("decode manifest: %w", err)
			}
			manifest = &m
			continue
		}

		outPath := filepath.Join(targetDir, filepath.FromSlash(rel))
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(outPath, 0o755); err != nil {
				return Manifest{}, err
			}
		case tar.TypeReg:
			fd, err := extractFile(tr, outPath, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return Manifest{}, err
			}
			fd.Path = rel
			restored[rel] = fd
		}
	}

	if manifest == nil {
		return Manifest{}, ErrMissingManifest
	}
	if err := verify(*manifest, restored); err != nil {
		return Manifest{}, err
	}
	return *manifest, nil
}

func extractFile(r io.Reader, outPath string, mode os.FileMode) (FileDigest, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return FileDigest{}, err
	}
	if mode == 0 {
		mode = 0o644
	}
	dst, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return FileDigest{}, err
	}
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(dst, h), r)
	if err != nil {
		_ = dst.Close()
		return FileDigest{}, err
	}
	if err := dst.Close(); err != nil {
		return FileDigest{}, err
	}
	return FileDigest{Size: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}

func verify(m Manifest, restored map[string]FileDigest) error {
	want := m.lookup()
	for path, w := range want {
		got, ok := restored[path]
		if !ok {
			return fmt.Errorf("%w: %s missing", ErrDigestMismatch, path)
		}
		if got.SHA256 != w.SHA256 || got.Size != w.Size {
			return fmt.Errorf("%w: %s", ErrDigestMismatch, path)
		}
	}
	for path := range restored {
		if _, ok := want[path]; !ok {
			return fmt.Errorf("%w: %s not listed", ErrDigestMismatch, path)
		}
	}
	return nil
}

func sanitizeArchiveRelPath(name string) (string, error) {
	name = filepath.ToSlash(filepath.Clean(strings.TrimSpace(name)))
	if name == "." || name == "" {
		return "", fmt.Errorf("invalid archive entry path")
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("invalid absolute archive entry path: %s", name)
	}
	if name == ".." || strings.HasPrefix(name, "../") {
		return "", fmt.Errorf("invalid archive entry path traversal: %s", name)
	}
	return name, nil
}
