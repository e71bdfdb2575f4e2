package archive

import (
	"archive/tar"
	"encoding/json"
	"io"
	"strings"
)

// BundleManifest is the manifest.json structure inside a training bundle.
type BundleManifest struct {
	Version     string            `json:"version"`
	SessionID   string            `json:"session_id,omitempty"`
	CreatedAt   string            `json:"created_at,omitempty"`
	Pairs       int               `json:"pairs,omitempty"`
	Corrections int               `json:"corrections,omitempty"`
	Rules       int               `json:"rules,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// bundleExts in stripping order, longest suffixes first.
var bundleExts = []string{
	".bundle.tar.xz", ".bundle.tar.gz",
	".tar.xz", ".tar.gz", ".tar",
}

// BundleID strips the known bundle extensions from a filename.
func BundleID(filename string) string {
	for _, ext := range bundleExts {
		if strings.HasSuffix(filename, ext) {
			return strings.TrimSuffix(filename, ext)
		}
	}
	return filename
}

// ReadManifest reads and decodes manifest.json from a bundle.
func ReadManifest(path string) (*BundleManifest, error) {
	content, err := ReadFile(path, "manifest.json")
	if err != nil {
		return nil, err
	}

	var m BundleManifest
	if err := json.Unmarshal(content, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// HasRules checks if a bundle contains a generated rules file.
func HasRules(path string) bool {
	found := false
	_ = Walk(path, func(hdr *tar.Header, _ io.Reader) (bool, error) {
		if strings.HasSuffix(hdr.Name, "rules.json") {
			found = true
			return true, nil
		}
		return false, nil
	})
	return found
}

// DetectFormat detects the archive format from the file extension.
func DetectFormat(path string) string {
	switch {
	case strings.HasSuffix(path, ".tar.xz"):
		return "tar.xz"
	case strings.HasSuffix(path, ".tar.gz"):
		return "tar.gz"
	case strings.HasSuffix(path, ".tar"):
		return "tar"
	default:
		return "unknown"
	}
}

// IsSupportedFormat returns true if the file has a supported archive extension.
func IsSupportedFormat(path string) bool {
	return strings.HasSuffix(path, ".tar.xz") ||
		strings.HasSuffix(path, ".tar.gz")
}
