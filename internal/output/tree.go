// Package output renders catalog data for the terminal.
package output

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/disiqueira/gotree/v3"
	"github.com/victor/stormcatalog/internal/models"
)

// FolderTree draws catalogued folders below a root with their asset counts
type FolderTree struct {
	root   string
	tree   gotree.Tree
	nodes  map[string]gotree.Tree
	counts map[string]int
}

func NewFolderTree(root string) *FolderTree {
	root = models.NormalizePath(root)
	return &FolderTree{
		root:   root,
		nodes:  make(map[string]gotree.Tree),
		counts: make(map[string]int),
	}
}

// AddFolder records a folder and the number of assets it holds
func (t *FolderTree) AddFolder(path string, assets int) {
	path = models.NormalizePath(path)
	if models.IsUnder(path, t.root) {
		t.counts[path] = assets
	}
}

func (t *FolderTree) label(path string) string {
	name := filepath.Base(path)
	if path == t.root {
		name = path
	}
	if count, ok := t.counts[path]; ok {
		return fmt.Sprintf("%s (%d)", name, count)
	}
	return name
}

func (t *FolderTree) node(path string) gotree.Tree {
	if path == t.root {
		return t.tree
	}
	if n, ok := t.nodes[path]; ok {
		return n
	}
	n := t.node(filepath.Dir(path)).Add(t.label(path))
	t.nodes[path] = n
	return n
}

// Render prints the tree with sibling folders sorted by name
func (t *FolderTree) Render() string {
	t.tree = gotree.New(t.label(t.root))
	t.nodes = make(map[string]gotree.Tree)

	paths := make([]string, 0, len(t.counts))
	for path := range t.counts {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		t.node(path)
	}
	return t.tree.Print()
}
