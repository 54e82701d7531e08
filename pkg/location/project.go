// SPDX-License-Identifier: MPL-2.0

package location

import (
	_ "embed"
	"path/filepath"
	"strings"

	"github.com/crescent-rt/crescent/pkg/cueutil"
)

// DefaultProjectFile maps a logical tree of names onto files.
//
//	{"tree": {"shared": {"$path": "src/shared", "util": {"$path": "lib/util.sh"}}}}
const DefaultProjectFile = "crescent.project.json"

//go:embed project_schema.cue
var projectSchema []byte

type (
	projectFile struct {
		Tree map[string]any `json:"tree"`
	}

	// node is one entry of a project tree.
	node struct {
		path     string
		children map[string]*node
	}

	// project is a parsed project file rooted at dir.
	project struct {
		dir  string
		tree *node
	}
)

func parseNode(raw map[string]any) *node {
	n := &node{children: make(map[string]*node)}
	for key, value := range raw {
		if key == "$path" {
			n.path, _ = value.(string)
			continue
		}
		if strings.HasPrefix(key, "$") {
			continue
		}
		if child, ok := value.(map[string]any); ok {
			n.children[key] = parseNode(child)
		}
	}
	return n
}

func parseProject(dir string, data []byte, filename string) (*project, error) {
	file, err := cueutil.Decode[projectFile](projectSchema, data, "#Project",
		cueutil.WithFilename(filename), cueutil.WithConcrete(false))
	if err != nil {
		return nil, err
	}
	return &project{dir: dir, tree: parseNode(file.Tree)}, nil
}

// lookup finds the mapped path of child under base. The tree node for base is
// the root when base is the project directory, otherwise the node whose $path
// names base, otherwise the node reached by walking base's components as keys.
func (p *project) lookup(base, child string) (string, bool) {
	current := p.nodeFor(base)
	if current == nil {
		return "", false
	}
	n, ok := current.children[child]
	if !ok || n.path == "" {
		return "", false
	}
	return p.abs(n.path), true
}

func (p *project) nodeFor(base string) *node {
	if base == p.dir {
		return p.tree
	}
	if n := p.byPath(p.tree, base); n != nil {
		return n
	}

	rel, err := filepath.Rel(p.dir, base)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	current := p.tree
	for _, component := range strings.Split(filepath.ToSlash(rel), "/") {
		next, ok := current.children[component]
		if !ok {
			return nil
		}
		current = next
	}
	return current
}

// byPath searches the subtree for the node whose $path resolves to target.
func (p *project) byPath(n *node, target string) *node {
	for _, child := range n.children {
		if child.path != "" && p.abs(child.path) == target {
			return child
		}
		if found := p.byPath(child, target); found != nil {
			return found
		}
	}
	return nil
}

func (p *project) abs(path string) string {
	return filepath.Join(p.dir, filepath.FromSlash(path))
}
