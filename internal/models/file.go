package models

import (
	"path/filepath"
	"strings"
	"time"
)

// FileProperties mirrors the filesystem metadata of a catalogued file
type FileProperties struct {
	Size         int64     `json:"size"`
	Creation     time.Time `json:"creation"`
	Modification time.Time `json:"modification"`
}

// SameSignature reports whether two property sets describe the same file content.
// Times are compared at second precision since the tables store them as text.
func (p FileProperties) SameSignature(other FileProperties) bool {
	return p.Size == other.Size && p.Modification.Unix() == other.Modification.Unix()
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
	".heic": true,
}

// IsImageFile reports whether the file name carries a supported image extension
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// IsHidden reports whether a file or directory name is hidden (dot-prefixed)
func IsHidden(name string) bool {
	return name != "" && name[0] == '.'
}

// NormalizePath cleans a directory path and strips trailing separators.
// The filesystem root keeps its separator.
func NormalizePath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	if len(cleaned) > 1 {
		cleaned = strings.TrimRight(cleaned, string(filepath.Separator))
		if cleaned == "" {
			return string(filepath.Separator)
		}
	}
	return cleaned
}

// IsUnder reports whether path equals root or lies below it
func IsUnder(path, root string) bool {
	path = NormalizePath(path)
	root = NormalizePath(root)
	if root == "" {
		return false
	}
	if path == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
