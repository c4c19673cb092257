package node

import "github.com/soypat/stlview/geom"

// Root is the scene node every tree starts at. Its transform is the identity.
type Root struct {
	base
}

// NewRoot returns an empty scene root.
func NewRoot() *Root {
	r := &Root{}
	r.init(TypeScene, r, false)
	return r
}

func (r *Root) Local() geom.Transform { return geom.Transform{} }

func (r *Root) renderSelf(RenderContext) {}

// Group is a container node with its own transform.
type Group struct {
	base
	local geom.Transform
}

// NewGroup returns an empty group with the identity transform.
func NewGroup() *Group {
	g := &Group{}
	g.init(TypeGroup, g, false)
	return g
}

func (g *Group) Local() geom.Transform { return g.local }

// SetLocal sets the transform of the group relative to its parent.
func (g *Group) SetLocal(t geom.Transform) { g.local = t }

func (g *Group) renderSelf(RenderContext) {}
