package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// CreateTarGz creates a tar.gz archive from a source directory.
// The baseDir parameter specifies the directory name inside the archive.
// If createParentDir is true, parent directories of dstPath are created.
func CreateTarGz(srcDir, dstPath, baseDir string, createParentDir bool) error {
	if createParentDir {
		if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
			return fmt.Errorf("failed to create parent directory: %w", err)
		}
	}

	outFile, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer outFile.Close()

	gw := gzip.NewWriter(outFile)
	defer gw.Close()

	return writeTar(gw, srcDir, baseDir)
}

// CreateTarXz creates a tar.xz archive from a source directory.
func CreateTarXz(srcDir, dstPath, baseDir string, createParentDir bool) error {
	if createParentDir {
		if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
			return fmt.Errorf("failed to create parent directory: %w", err)
		}
	}

	outFile, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer outFile.Close()

	xw, err := xz.NewWriter(outFile)
	if err != nil {
		return fmt.Errorf("xz writer: %w", err)
	}
	defer xw.Close()

	return writeTar(xw, srcDir, baseDir)
}

// Create builds an archive from srcDir, choosing the compressor from the
// destination extension (.tar.gz or .tar.xz). The base directory inside
// the archive is derived from dstPath with archive suffixes removed.
func Create(srcDir, dstPath string) error {
	baseDir := filepath.Base(BundleID(dstPath))
	switch {
	case strings.HasSuffix(dstPath, ".tar.xz"):
		return CreateTarXz(srcDir, dstPath, baseDir, true)
	case strings.HasSuffix(dstPath, ".tar.gz"):
		return CreateTarGz(srcDir, dstPath, baseDir, true)
	default:
		return fmt.Errorf("unsupported archive format: %s", dstPath)
	}
}

// writeTar streams srcDir into a tar stream under baseDir.
func writeTar(w io.Writer, srcDir, baseDir string) error {
	tw := tar.NewWriter(w)
	defer tw.Close()

	now := time.Now()

	err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		// Skip root directory
		if relPath == "." {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}

		// Set the name with the base directory prefix
		header.Name = baseDir + "/" + filepath.ToSlash(relPath)
		if info.IsDir() {
			header.Name += "/"
		}

		// Normalize timestamps for reproducibility
		header.ModTime = now

		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		if !info.IsDir() {
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()

			if _, err := io.Copy(tw, file); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	return nil
}
