package models

import "path/filepath"

// Folder represents a catalogued directory
type Folder struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// Name returns the last element of the folder path
func (f *Folder) Name() string {
	return filepath.Base(f.Path)
}

// IsParentOf reports whether other is a direct child of f
func (f *Folder) IsParentOf(other *Folder) bool {
	return other != nil && filepath.Dir(other.Path) == f.Path && other.Path != f.Path
}
