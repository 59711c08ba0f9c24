package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"galway/internal/config"
	"galway/internal/ops"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "backup":
		err = cmdBackup(os.Args[2:])
	case "restore":
		err = cmdRestore(os.Args[2:])
	case "drill":
		err = cmdDrill(os.Args[2:])
	default:
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

// defaultDataDir resolves the data directory the server would use.
func defaultDataDir() string {
	path := os.Getenv("GALWAY_CONFIG")
	if path == "" {
		path = "galway_config.yml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return "data"
	}
	return cfg.Storage.DataDir
}

func timestamp() string {
	return time.Now().UTC().Format("20060102T150405Z")
}

func cmdBackup(args []string) error {
	fs := flag.NewFlagSet("backup", flag.ContinueOnError)
	dataDir := fs.String("data-dir", defaultDataDir(), "path to data directory")
	out := fs.String("out", "", "output archive path (.tar.gz)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *out == "" {
		*out = filepath.Join("backups", "galway-"+timestamp()+".tar.gz")
	}

	m, err := ops.BackupDataDir(*dataDir, *out)
	if err != nil {
		return err
	}
	fmt.Println(*out)
	fmt.Printf("files: %d digest: %s\n", len(m.Files), m.Digest())
	return nil
}

func cmdRestore(args []string) error {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	archive := fs.String("archive", "", "input backup archive (.tar.gz)")
	target := fs.String("target-dir", "data-restored", "restore target directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *archive == "" {
		return fmt.Errorf("archive is required")
	}
	m, err := ops.RestoreDataDir(*archive, *target)
	if err != nil {
		return err
	}
	fmt.Printf("restored %d files into %s (digest %s)\n", len(m.Files), *target, m.Digest())
	return nil
}

func cmdDrill(args []string) error {
	fs := flag.NewFlagSet("drill", flag.ContinueOnError)
	dataDir := fs.String("data-dir", defaultDataDir(), "path to data directory")
	workDir := fs.String("work-dir", os.TempDir(), "temporary workspace for drill artifacts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := os.MkdirAll(*workDir, 0o755); err != nil {
		return err
	}
	ts := timestamp()
	archive := filepath.Join(*workDir, "galway-drill-"+ts+".tar.gz")
	restoreDir := filepath.Join(*workDir, "galway-drill-restore-"+ts)

	if _, err := ops.BackupDataDir(*dataDir, archive); err != nil {
		return err
	}
	if _, err := ops.RestoreDataDir(archive, restoreDir); err != nil {
		return err
	}

	src, err := ops.DirManifest(*dataDir)
	if err != nil {
		return err
	}
	restored, err := ops.DirManifest(restoreDir)
	if err != nil {
		return err
	}
	if src.Digest() != restored.Digest() {
		return fmt.Errorf("digest mismatch after restore: src=%s restored=%s", src.Digest(), restored.Digest())
	}

	fmt.Println("backup:", archive)
	fmt.Println("restored:", restoreDir)
	fmt.Println("digest:", src.Digest())
	return nil
}

func printUsage() {
	fmt.Println("usage:")
	fmt.Println("  galway-ops backup  --data-dir data --out backups/backup.tar.gz")
	fmt.Println("  galway-ops restore --archive backups/backup.tar.gz --target-dir data-restored")
	fmt.Println("  galway-ops drill   --data-dir data --work-dir /tmp")
}
