package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"sandfall.io/internal/persistence/snapshot"
)

type BaselineMeta struct {
	TerrainDigest string `json:"terrain_digest"`
	Mode          string `json:"mode"`
	Source        [2]int `json:"source"`
	RunID         string `json:"run_id"`
	Grains        int    `json:"grains"`
	Digest        string `json:"digest"`
	Snapshot      string `json:"snapshot"`
	CreatedAt     string `json:"created_at"`
}

// BaselineDir is `dataDir/archives/<terrain digest prefix>/`.
func BaselineDir(dataDir, terrainDigest string) string {
	key := terrainDigest
	if len(key) > 16 {
		key = key[:16]
	}
	return filepath.Join(dataDir, "archives", key)
}

func baselineName(snap snapshot.SnapshotV1) string {
	return fmt.Sprintf("%s_%d_%d", snap.Header.Mode, snap.Source[0], snap.Source[1])
}

// ArchiveBaseline copies the first successful snapshot for a terrain, mode and
// source into the archive. Later runs of the same combination leave the
// baseline alone and return archived=false.
func ArchiveBaseline(dataDir, snapshotPath string, snap snapshot.SnapshotV1) (archivedPath string, archived bool, err error) {
	if snap.TerrainDigest == "" {
		return "", false, fmt.Errorf("archive: snapshot %s has no terrain digest", snap.Header.RunID)
	}
	dir := BaselineDir(dataDir, snap.TerrainDigest)
	name := baselineName(snap)
	dst := filepath.Join(dir, name+".snap.zst")
	if _, err := os.Stat(dst); err == nil {
		return dst, false, nil
	} else if !os.IsNotExist(err) {
		return "", false, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, err
	}
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := BaselineMeta{
		TerrainDigest: snap.TerrainDigest,
		Mode:          snap.Header.Mode,
		Source:        snap.Source,
		RunID:         snap.Header.RunID,
		Grains:        snap.Header.Grains,
		Digest:        snap.Digest,
		Snapshot:      filepath.Base(dst),
		CreatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(dir, name+".meta.json"), b, 0o644)
	}

	return dst, true, nil
}

// CompareBaseline reports whether snap matches the archived baseline for its
// terrain, mode and source. ok is false when no baseline exists.
func CompareBaseline(dataDir string, snap snapshot.SnapshotV1) (base snapshot.Header, match bool, ok bool, err error) {
	dst := filepath.Join(BaselineDir(dataDir, snap.TerrainDigest), baselineName(snap)+".snap.zst")
	prev, err := snapshot.ReadSnapshot(dst)
	if os.IsNotExist(err) {
		return snapshot.Header{}, false, false, nil
	}
	if err != nil {
		return snapshot.Header{}, false, false, err
	}
	return prev.Header, prev.Header.Grains == snap.Header.Grains && prev.Digest == snap.Digest, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
