package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ddddddO/gtree"
	"gopkg.in/yaml.v3"

	"github.com/odvcencio/glenhance/internal/resolve"
)

func (a *app) write(w io.Writer, v any) error {
	if a.output == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeNamespaceTree renders the namespace forest, or the subtree at root,
// as an indented tree.
func writeNamespaceTree(w io.Writer, res *resolve.Result, root *int64) error {
	roots := res.Tree.Roots()
	if root != nil {
		if !res.Tree.Has(*root) {
			return fmt.Errorf("namespace %d not found", *root)
		}
		roots = []int64{*root}
	}

	top := gtree.NewRoot(".")
	var add func(parent *gtree.Node, id int64)
	add = func(parent *gtree.Node, id int64) {
		ns, _ := res.Namespace(id)
		node := parent.Add(fmt.Sprintf("%s (%s) #%d", ns.Path, ns.QualifiedName, ns.ID))
		for _, child := range res.Tree.Children(id) {
			add(node, child)
		}
	}
	for _, id := range roots {
		add(top, id)
	}
	return gtree.OutputFromRoot(w, top)
}
