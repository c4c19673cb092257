// Package node implements the scene tree of the viewer: a root, groups,
// meshes and the printer's build volume and plate.
//
// Nodes are created through the New* constructors of this package and are
// mutated through their methods only. Every node carries a UUID, a fixed
// Type, a non-owning pointer to its parent and an ordered list of children.
package node

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/soypat/stlview/geom"
)

var (
	// ErrLeaf is returned when adding a child to a node that cannot have children.
	ErrLeaf = errors.New("node cannot have children")
	// ErrHasParent is returned when adding a node that is already attached to a tree.
	ErrHasParent = errors.New("node already has a parent")
)

// Type identifies the variant of a Node. It is fixed at construction.
type Type int

const (
	TypeNone Type = iota
	TypeScene
	TypeMesh
	TypeGroup
	TypeBuildVolume
	TypeBuildPlate
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeScene:
		return "scene"
	case TypeMesh:
		return "mesh"
	case TypeGroup:
		return "group"
	case TypeBuildVolume:
		return "buildVolume"
	case TypeBuildPlate:
		return "buildPlate"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// RequestType classifies why a render was requested.
type RequestType int

const (
	RequestScene RequestType = iota
	RequestCamera
	RequestMesh
	RequestTransformation
	RequestCanvas
)

func (r RequestType) String() string {
	switch r {
	case RequestScene:
		return "scene"
	case RequestCamera:
		return "camera"
	case RequestMesh:
		return "mesh"
	case RequestTransformation:
		return "transformation"
	case RequestCanvas:
		return "canvas"
	}
	return fmt.Sprintf("RequestType(%d)", int(r))
}

// AffectsNodes reports whether requests of this type require the node tree
// to refresh its visual state before a frame is drawn.
func (r RequestType) AffectsNodes() bool {
	return r == RequestScene || r == RequestMesh || r == RequestTransformation || r == RequestCanvas
}

// RenderContext is passed down the tree on every render pass.
type RenderContext struct {
	// Source is the tag of whoever requested the render, e.g. a mesh's SourceTag.
	Source string
	Type   RequestType
	// Force asks every node to reapply its visual state even if it is clean.
	Force bool
}

// PropertyChange is emitted by nodes when a visual-affecting property changes.
type PropertyChange struct {
	NodeID   string
	Property string
	Value    any
}

// Node is implemented by every scene tree entity of this package.
type Node interface {
	ID() string
	Type() Type
	// Parent returns the node this node is attached to or nil.
	Parent() Node
	// Children returns a copy of the child list.
	Children() []Node
	AddChild(Node) error
	// RemoveChild detaches child and reports whether it was a child of the node.
	RemoveChild(Node) bool
	// Render refreshes the node's visual state and then renders its children in order.
	Render(RenderContext)
	// Local returns the transform of the node relative to its parent.
	Local() geom.Transform
	// World returns the transform of the node relative to the scene root.
	World() geom.Transform

	node() *base
	renderSelf(RenderContext)
}

// base holds the tree bookkeeping shared by all node variants.
type base struct {
	id       string
	typ      Type
	leaf     bool
	self     Node
	parent   Node
	children []Node
}

func (b *base) init(typ Type, self Node, leaf bool) {
	b.id = uuid.NewString()
	b.typ = typ
	b.self = self
	b.leaf = leaf
}

func (b *base) node() *base { return b }

func (b *base) ID() string { return b.id }

func (b *base) Type() Type { return b.typ }

func (b *base) Parent() Node { return b.parent }

func (b *base) Children() []Node {
	children := make([]Node, len(b.children))
	copy(children, b.children)
	return children
}

func (b *base) AddChild(child Node) error {
	if b.leaf {
		return fmt.Errorf("add %s to %s: %w", child.Type(), b.typ, ErrLeaf)
	}
	cb := child.node()
	if cb.parent != nil {
		return fmt.Errorf("add %s %s: %w", child.Type(), child.ID(), ErrHasParent)
	}
	for p := b.self; p != nil; p = p.Parent() {
		if p == child {
			return errors.New("adding node would create a cycle")
		}
	}
	cb.parent = b.self
	b.children = append(b.children, child)
	return nil
}

func (b *base) RemoveChild(child Node) bool {
	for i, c := range b.children {
		if c == child {
			b.children = append(b.children[:i], b.children[i+1:]...)
			child.node().parent = nil
			return true
		}
	}
	return false
}

func (b *base) Render(ctx RenderContext) {
	b.self.renderSelf(ctx)
	for _, c := range b.Children() {
		c.Render(ctx)
	}
}

func (b *base) World() geom.Transform {
	local := b.self.Local()
	if b.parent == nil {
		return local
	}
	return b.parent.World().Mul(local)
}

// Detach removes n from its parent, if any.
func Detach(n Node) {
	if p := n.Parent(); p != nil {
		p.RemoveChild(n)
	}
}

// Walk calls fn for root and all its descendants in depth first pre-order,
// visiting children in index order. Walk stops descending into a node's
// children when fn returns false for it.
func Walk(root Node, fn func(Node) bool) {
	if root == nil || !fn(root) {
		return
	}
	for _, c := range root.Children() {
		Walk(c, fn)
	}
}

// FindByID returns the first node in walk order with the given id or nil.
func FindByID(root Node, id string) Node {
	var found Node
	Walk(root, func(n Node) bool {
		if found != nil {
			return false
		}
		if n.ID() == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Meshes returns every mesh under root in walk order.
func Meshes(root Node) []*Mesh {
	var meshes []*Mesh
	Walk(root, func(n Node) bool {
		if m, ok := n.(*Mesh); ok {
			meshes = append(meshes, m)
		}
		return true
	})
	return meshes
}
