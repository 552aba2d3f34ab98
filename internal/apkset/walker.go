package apkset

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/sirupsen/logrus"

	"github.com/cafebazaar/bundlesigner/internal/models"
)

// Marker is the path segment that identifies an APK-bearing entry inside an
// APK Set archive. Entries without it (table of contents, metadata) are
// skipped without extraction.
const Marker = ".apk"

// Variant is one APK entry materialized from an APK Set
type Variant struct {
	// Name is the archive-internal entry path with separators collapsed
	// into underscores. It is the correlation key between the two signing
	// phases and must be unique across both APK Sets of a run.
	Name string

	// Path is where the entry's bytes were extracted
	Path string
}

// VariantName normalizes an archive entry path into a variant name: the path
// is truncated after the APK marker and path separators become underscores,
// so identically-named leaves from different configuration directories stay
// distinct.
func VariantName(entryPath string) string {
	if idx := strings.Index(entryPath, Marker); idx >= 0 {
		entryPath = entryPath[:idx+len(Marker)]
	}
	return strings.ReplaceAll(entryPath, "/", "_")
}

// WalkFunc is invoked once per extracted variant, in archive encounter order
type WalkFunc func(v Variant) error

// Walk streams an APK Set archive entry by entry, extracting each APK-bearing
// entry under destDir with its archive-relative directory structure
// preserved, and invokes fn for it. One variant is fully extracted and
// handed to fn before the next entry is read. Any error aborts the walk.
func Walk(archivePath, destDir string, fn WalkFunc) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return &models.ToolError{
			Type:    models.ErrBundleToolIO,
			Subject: archivePath,
			Err:     fmt.Errorf("failed to open APK Set: %w", err),
		}
	}
	defer r.Close()

	// APK Sets are plain deflate zips
	r.RegisterDecompressor(zip.Deflate, func(in io.Reader) io.ReadCloser {
		return flate.NewReader(in)
	})

	for _, entry := range r.File {
		if !strings.Contains(entry.Name, Marker) {
			logrus.Debugf("Skipping non-APK entry: %s", entry.Name)
			continue
		}
		if entry.FileInfo().IsDir() {
			continue
		}

		extracted, err := extractEntry(entry, destDir)
		if err != nil {
			return &models.ToolError{
				Type:    models.ErrBundleToolIO,
				Subject: entry.Name,
				Err:     err,
			}
		}

		v := Variant{Name: VariantName(entry.Name), Path: extracted}
		logrus.Debugf("Extracted variant %s -> %s", v.Name, v.Path)

		if err := fn(v); err != nil {
			return err
		}
	}

	return nil
}

// extractEntry copies one zip entry verbatim to destDir, creating parent
// directories as needed
func extractEntry(entry *zip.File, destDir string) (string, error) {
	rel := filepath.FromSlash(entry.Name)
	dest := filepath.Join(destDir, rel)

	// Reject entries that would escape the destination directory
	if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("entry path escapes extraction directory: %s", entry.Name)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", err
	}

	src, err := entry.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open entry: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", fmt.Errorf("failed to extract entry: %w", err)
	}

	return dest, out.Sync()
}
