package parser

import (
	"strings"

	"github.com/disiqueira/gotree" // lib for print tree structure in terminal
)

// IsList reports whether e is a parenthesized list.
func (e *Expression) IsList() bool {
	return e != nil && e.List != nil
}

// Items returns the list items of e, or nil for a non-list.
func (e *Expression) Items() []*Expression {
	if !e.IsList() {
		return nil
	}
	return e.List.Items
}

// AtomName returns the atom name of e.
func (e *Expression) AtomName() (string, bool) {
	if e == nil || e.Atom == nil {
		return "", false
	}
	return *e.Atom, true
}

// IsLiteral reports whether e is a literal value (int, buffer, string or
// principal).
func (e *Expression) IsLiteral() bool {
	return e != nil && (e.Int != nil || e.Buffer != nil || e.Str != nil || e.Principal != nil)
}

// String renders e back to source form.
func (e *Expression) String() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.List != nil:
		parts := make([]string, len(e.List.Items))
		for i, item := range e.List.Items {
			parts[i] = item.String()
		}
		return "(" + strings.Join(parts, " ") + ")"
	case e.Buffer != nil:
		return *e.Buffer
	case e.Int != nil:
		return *e.Int
	case e.Str != nil:
		return quote(*e.Str)
	case e.Principal != nil:
		return *e.Principal
	case e.Atom != nil:
		return *e.Atom
	}
	return "<empty>"
}

func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s) + `"`
}

// DisplayAST displays the program tree, convenient for debug
func DisplayAST(program []*Expression) string {
	root := gotree.New("Program")
	for _, expr := range program {
		addNode(root, expr)
	}
	return root.Print()
}

func addNode(parent gotree.Tree, expr *Expression) {
	if !expr.IsList() {
		parent.Add(expr.String())
		return
	}
	items := expr.Items()
	if len(items) == 0 {
		parent.Add("()")
		return
	}
	label := "list"
	if name, ok := items[0].AtomName(); ok {
		label = name
		items = items[1:]
	}
	node := parent.Add(label)
	for _, item := range items {
		addNode(node, item)
	}
}
