package kintree

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"articulate/internal/object"
)

// Build validates an object description and produces its kinematic tree, or
// fails with a structural error. The description is not modified.
func Build(d *object.Description) (*Tree, error) {
	// Index links by id.
	links := make(map[string]*object.LinkSpec, len(d.Links))
	for i := range d.Links {
		l := &d.Links[i]
		if _, ok := links[l.ID]; ok {
			return nil, &DuplicateLinkError{ID: l.ID}
		}
		links[l.ID] = l
	}

	// Index joints by child id; a repeated child means two parents.
	inbound := make(map[string]*object.JointSpec, len(d.Joints))
	outbound := make(map[string][]*object.JointSpec)
	for i := range d.Joints {
		j := &d.Joints[i]
		if _, ok := links[j.Parent]; !ok {
			return nil, &InvalidJointError{Joint: j.ID, Reason: fmt.Sprintf("parent link %q not declared", j.Parent)}
		}
		if _, ok := links[j.Child]; !ok {
			return nil, &InvalidJointError{Joint: j.ID, Reason: fmt.Sprintf("child link %q not declared", j.Child)}
		}
		if prev, ok := inbound[j.Child]; ok {
			return nil, &MultipleParentsError{Link: j.Child, Joints: []string{prev.ID, j.ID}}
		}
		inbound[j.Child] = j
		outbound[j.Parent] = append(outbound[j.Parent], j)
	}

	// The root is the unique link with no inbound joint.
	var roots []string
	for id := range links {
		if _, ok := inbound[id]; !ok {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)

	switch len(roots) {
	case 0:
		// Every link has a parent, so the joint graph must close on itself
		// somewhere; report the cycle rather than the bare absence of a root.
		if path := findCycle(links, inbound); path != nil {
			return nil, &CycleDetectedError{Path: path}
		}
		return nil, &NoRootError{}
	case 1:
		// ok
	default:
		return nil, &MultipleRootsError{Roots: roots}
	}
	root := roots[0]
	if d.Root != "" && d.Root != root {
		return nil, fmt.Errorf("root hint %q does not match derived root %q", d.Root, root)
	}

	t := &Tree{
		Name:  d.Name,
		Root:  root,
		Nodes: make(map[string]*Node, len(links)),
		Edges: make(map[string]*Edge, len(d.Joints)),
	}

	// Pre-order traversal from the root, assigning depth and accumulating
	// the joint-origin composition. Children are visited in joint-id order so
	// Tree.Order is deterministic.
	type frame struct {
		link  string
		joint *object.JointSpec // inbound, nil for root
		depth int
		world mgl64.Mat4
	}
	onPath := make(map[string]bool, len(links))
	stack := []frame{{link: root, depth: 0, world: mgl64.Ident4()}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if onPath[f.link] {
			return nil, &CycleDetectedError{Path: []string{f.link, f.link}}
		}
		onPath[f.link] = true

		n := &Node{
			Link:  links[f.link],
			Depth: f.depth,
			Local: mgl64.Ident4(),
			World: f.world,
		}
		if f.joint != nil {
			n.ParentJoint = f.joint.ID
			n.Local = originMatrix(f.joint.Origin)
		}

		children := append([]*object.JointSpec(nil), outbound[f.link]...)
		sort.Slice(children, func(i, k int) bool { return children[i].ID < children[k].ID })
		for _, j := range children {
			n.ChildJoints = append(n.ChildJoints, j.ID)
		}
		// Push in reverse so the smallest joint id is visited first.
		for i := len(children) - 1; i >= 0; i-- {
			j := children[i]
			stack = append(stack, frame{
				link:  j.Child,
				joint: j,
				depth: f.depth + 1,
				world: f.world.Mul4(originMatrix(j.Origin)),
			})
		}

		t.Nodes[f.link] = n
		t.Order = append(t.Order, f.link)
	}

	// Every declared link must have been visited.
	var dangling []string
	for id := range links {
		if _, ok := t.Nodes[id]; !ok {
			dangling = append(dangling, id)
		}
	}
	if len(dangling) > 0 {
		sort.Strings(dangling)
		return nil, &UnreachableLinkError{Links: dangling}
	}

	// Per-joint axis and limit validation.
	for i := range d.Joints {
		j := &d.Joints[i]
		e := &Edge{Joint: j}
		if j.Type.Movable() {
			if j.Axis == nil {
				return nil, &InvalidJointError{Joint: j.ID, Reason: fmt.Sprintf("%s joint requires an axis", j.Type)}
			}
			axis := mgl64.Vec3{j.Axis[0], j.Axis[1], j.Axis[2]}
			if axis.Len() < 1e-12 {
				return nil, &InvalidJointError{Joint: j.ID, Reason: "axis is the zero vector"}
			}
			e.Axis = axis.Normalize()
		}
		if j.Limits != nil && j.Limits.Lower > j.Limits.Upper {
			return nil, &InvalidJointError{
				Joint:  j.ID,
				Reason: fmt.Sprintf("limit lower %g exceeds upper %g", j.Limits.Lower, j.Limits.Upper),
			}
		}
		t.Edges[j.ID] = e
	}

	return t, nil
}

// findCycle follows inbound joints upward from each link until a link repeats,
// returning the closed link path (first element == last). Returns nil when the
// parent chains never close.
func findCycle(links map[string]*object.LinkSpec, inbound map[string]*object.JointSpec) []string {
	ids := make([]string, 0, len(links))
	for id := range links {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, start := range ids {
		seen := map[string]int{start: 0}
		chain := []string{start}
		cur := start
		for {
			j, ok := inbound[cur]
			if !ok {
				break // reached a root; no cycle through start
			}
			cur = j.Parent
			if at, ok := seen[cur]; ok {
				// chain runs child→parent; reverse so the report reads in
				// joint (parent→child) direction.
				cycle := append([]string(nil), chain[at:]...)
				cycle = append(cycle, cur)
				for i, k := 0, len(cycle)-1; i < k; i, k = i+1, k-1 {
					cycle[i], cycle[k] = cycle[k], cycle[i]
				}
				return cycle
			}
			seen[cur] = len(chain)
			chain = append(chain, cur)
		}
	}
	return nil
}
