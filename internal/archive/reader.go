// Package archive reads and writes the compressed tar bundles produced
// by the training pipeline. Bundles are .tar.gz or .tar.xz archives with
// a manifest.json under a single session directory.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"
)

// Entry describes one bundle member.
type Entry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Walk streams the bundle at path through visit, choosing the
// decompressor from the file extension. Returning stop ends the walk
// early; the content reader is only valid until visit returns.
func Walk(path string, visit func(hdr *tar.Header, content io.Reader) (stop bool, err error)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	var src io.Reader
	switch {
	case strings.HasSuffix(path, ".tar.xz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("xz reader: %w", err)
		}
		src = xzr
	case strings.HasSuffix(path, ".tar.gz"):
		gzr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("gzip reader: %w", err)
		}
		defer gzr.Close()
		src = gzr
	default:
		return fmt.Errorf("unsupported bundle format: %s", path)
	}

	tr := tar.NewReader(src)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read bundle entry: %w", err)
		}
		stop, err := visit(hdr, tr)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// ListEntries returns the bundle's file members in archive order.
func ListEntries(path string) ([]Entry, error) {
	var entries []Entry
	err := Walk(path, func(hdr *tar.Header, _ io.Reader) (bool, error) {
		if hdr.Typeflag == tar.TypeDir {
			return false, nil
		}
		entries = append(entries, Entry{Name: hdr.Name, Size: hdr.Size})
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ReadFile returns the named member's content. The leading session
// directory is ignored, so "pairs/a.txt" matches "session/pairs/a.txt".
func ReadFile(path, name string) ([]byte, error) {
	var content []byte
	err := Walk(path, func(hdr *tar.Header, r io.Reader) (bool, error) {
		entry := hdr.Name
		if idx := strings.Index(entry, "/"); idx >= 0 {
			entry = entry[idx+1:]
		}
		if entry == name || hdr.Name == name {
			var err error
			content, err = io.ReadAll(r)
			return true, err
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("bundle member not found: %s", name)
	}
	return content, nil
}
