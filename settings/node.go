package settings

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrEmptyPath    = errors.New("settings path must not be empty")
	ErrEmptyValue   = errors.New("settings value must not be empty")
	ErrPathConflict = errors.New("settings path runs through a value list")
)

// Kind tags the variant held by a Node.
type Kind int

const (
	KindLeaves Kind = iota
	KindBranch
)

// Node is either an ordered branch of named children or a list of leaf values.
type Node struct {
	kind     Kind
	values   []string
	keys     []string
	children map[string]*Node
}

func NewBranch() *Node {
	return &Node{kind: KindBranch, children: make(map[string]*Node)}
}

func NewLeaves(values ...string) *Node {
	return &Node{kind: KindLeaves, values: slices.Clone(values)}
}

func (n *Node) Kind() Kind {
	return n.kind
}

// Keys returns the child names of a branch in document order.
func (n *Node) Keys() []string {
	return slices.Clone(n.keys)
}

// Values returns the leaf values of a leaf list.
func (n *Node) Values() []string {
	return slices.Clone(n.values)
}

// Child returns the named child of a branch.
func (n *Node) Child(key string) (*Node, bool) {
	c := n.child(key)
	return c, c != nil
}

// Set adds or replaces a child, keeping the position of an existing key.
func (n *Node) Set(key string, child *Node) {
	if n.kind != KindBranch {
		n.promote()
	}

	n.set(key, child)
}

func (n *Node) child(key string) *Node {
	if n == nil || n.kind != KindBranch {
		return nil
	}

	return n.children[key]
}

func (n *Node) set(key string, child *Node) {
	if _, exists := n.children[key]; !exists {
		n.keys = append(n.keys, key)
	}

	n.children[key] = child
}

// Clone returns a deep copy.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}

	if n.kind == KindLeaves {
		return NewLeaves(n.values...)
	}

	c := NewBranch()
	for _, k := range n.keys {
		c.set(k, n.children[k].Clone())
	}

	return c
}

// Resolve returns the options at path. Without parent it descends every segment and returns the
// keys of a branch or the values of a leaf list. With parent it descends to the second to last
// segment, indexes that level by parent and then reads the last segment. Anything missing
// resolves to an empty list.
func (n *Node) Resolve(path, parent string) []string {
	parts := splitPath(path)
	if len(parts) == 0 {
		return n.options()
	}

	if parent == "" {
		return n.descend(parts).options()
	}

	last := len(parts) - 1
	level := n.descend(parts[:last])

	return level.child(parent).child(parts[last]).options()
}

func (n *Node) descend(parts []string) *Node {
	cur := n
	for _, p := range parts {
		cur = cur.child(p)
		if cur == nil {
			return nil
		}
	}

	return cur
}

func (n *Node) options() []string {
	switch {
	case n == nil:
		return []string{}
	case n.kind == KindBranch:
		return n.Keys()
	default:
		return n.Values()
	}
}

// Append adds value at path unless it is already there and reports whether the tree changed.
// Missing segments are created as branches. Appending to a branch adds value as an empty child.
// With parent, the second to last level is indexed by parent first; a leaf list found at that
// level is turned into a branch whose children are its former values. Any other leaf list on
// the way is a path conflict.
func (n *Node) Append(path, value, parent string) (bool, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return false, ErrEmptyPath
	}

	if value == "" {
		return false, ErrEmptyValue
	}

	if n.kind != KindBranch {
		return false, fmt.Errorf("%w: document root", ErrPathConflict)
	}

	last := len(parts) - 1
	modified := false
	cur := n

	for i, p := range parts[:last] {
		next, changed, err := cur.branch(p, parent != "" && i == last-1)
		if err != nil {
			return false, err
		}
		modified = modified || changed
		cur = next
	}

	if parent != "" {
		next, changed, err := cur.branch(parent, false)
		if err != nil {
			return false, err
		}
		modified = modified || changed
		cur = next
	}

	target := cur.child(parts[last])
	if target == nil {
		cur.set(parts[last], NewLeaves(value))
		return true, nil
	}

	return target.add(value) || modified, nil
}

// branch returns the named child as a branch, creating it when absent.
func (n *Node) branch(key string, promote bool) (*Node, bool, error) {
	c := n.child(key)

	switch {
	case c == nil:
		c = NewBranch()
		n.set(key, c)
		return c, true, nil
	case c.kind == KindBranch:
		return c, false, nil
	case promote:
		c.promote()
		return c, true, nil
	default:
		return nil, false, fmt.Errorf("%w: %q", ErrPathConflict, key)
	}
}

func (n *Node) promote() {
	values := n.values

	n.kind = KindBranch
	n.values = nil
	n.keys = nil
	n.children = make(map[string]*Node, len(values))

	for _, v := range values {
		n.set(v, NewBranch())
	}
}

func (n *Node) add(value string) bool {
	if n.kind == KindLeaves {
		if slices.Contains(n.values, value) {
			return false
		}
		n.values = append(n.values, value)
		return true
	}

	if _, exists := n.children[value]; exists {
		return false
	}
	n.set(value, NewBranch())

	return true
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}

	return strings.Split(path, ".")
}
