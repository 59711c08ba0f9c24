package ops

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir parent %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

type entry struct {
	name string
	body []byte
}

func writeArchive(t *testing.T, path string, entries []entry) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		if err := tw.WriteHeader(&tar.Header{
			Name:     e.name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(e.body)),
		}); err != nil {
			t.Fatalf("write header: %v", err)
		}
		if _, err := tw.Write(e.body); err != nil {
			t.Fatalf("write body: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar writer: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}

func TestBackupRestoreDataDir_RoundTrip(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src")
	files := map[string]string{
		"auth.json":          `{"users":{"usr_1":{"username":"ana"}}}`,
		"profiles.json":      `{"users":{"usr_1":{"bio":"studies olives"}}}`,
		"inventory.json":     `{"users":{"usr_1":{"items":[]}}}`,
		"archive/forum.json": `{"threads":{},"replies":{},"reports":[]}`,
	}
	writeTree(t, src, files)

	archive := filepath.Join(t.TempDir(), "backup.tar.gz")
	written, err := BackupDataDir(src, archive)
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	if len(written.Files) != len(files) {
		t.Fatalf("manifest lists %d files, want %d", len(written.Files), len(files))
	}

	restoreDir := filepath.Join(t.TempDir(), "restore")
	restored, err := RestoreDataDir(archive, restoreDir)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if restored.Digest() != written.Digest() {
		t.Fatalf("manifest digest changed: %s != %s", restored.Digest(), written.Digest())
	}

	srcManifest, err := DirManifest(src)
	if err != nil {
		t.Fatalf("src manifest: %v", err)
	}
	outManifest, err := DirManifest(restoreDir)
	if err != nil {
		t.Fatalf("restore manifest: %v", err)
	}
	if srcManifest.Digest() != outManifest.Digest() {
		t.Fatalf("restored tree differs from source")
	}

	got := map[string]string{}
	for _, fd := range outManifest.Files {
		b, err := os.ReadFile(filepath.Join(restoreDir, fd.Path))
		if err != nil {
			t.Fatalf("read %s: %v", fd.Path, err)
		}
		got[fd.Path] = string(b)
	}
	if !reflect.DeepEqual(files, got) {
		t.Fatalf("restored files mismatch:\nwant=%v\ngot=%v", files, got)
	}
	if _, err := os.Stat(filepath.Join(restoreDir, ManifestName)); !os.IsNotExist(err) {
		t.Fatalf("manifest should not be extracted into the data dir")
	}
}

func TestRestoreDataDir_RejectsPathTraversal(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "bad.tar.gz")
	writeArchive(t, archive, []entry{{name: "../escape.txt", body: []byte("bad")}})

	if _, err := RestoreDataDir(archive, filepath.Join(t.TempDir(), "out")); err == nil {
		t.Fatalf("expected restore to reject path traversal archive")
	}
}

func TestRestoreDataDir_RequiresManifest(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "old.tar.gz")
	writeArchive(t, archive, []entry{{name: "auth.json", body: []byte("{}")}})

	_, err := RestoreDataDir(archive, filepath.Join(t.TempDir(), "out"))
	if !errors.Is(err, ErrMissingManifest) {
		t.Fatalf("expected ErrMissingManifest, got %v", err)
	}
}

func TestRestoreDataDir_DetectsTamperedFile(t *testing.T) {
	m := Manifest{Version: 1, Files: []FileDigest{{
		Path:   "auth.json",
		Size:   2,
		SHA256: "44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a",
	}}}
	body, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	archive := filepath.Join(t.TempDir(), "tampered.tar.gz")
	writeArchive(t, archive, []entry{
		{name: "auth.json", body: []byte("[]")},
		{name: ManifestName, body: body},
	})

	_, err = RestoreDataDir(archive, filepath.Join(t.TempDir(), "out"))
	if !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("expected ErrDigestMismatch, got %v", err)
	}
}
