// Package kintree builds a validated kinematic tree from an object
// description. The description is authored as an edge list of parent/child
// joints with no guarantee of being acyclic or connected, so construction is
// an explicit validation pass: links and joints are indexed into flat maps,
// the root is derived, and the tree is produced by a traversal with cycle
// detection. A Tree is never mutated after Build returns.
package kintree

import (
	"github.com/go-gl/mathgl/mgl64"

	"articulate/internal/object"
)

// Node is one link in the validated tree.
type Node struct {
	Link *object.LinkSpec

	ParentJoint string   // inbound joint id, "" for the root
	ChildJoints []string // outbound joint ids, sorted

	Depth int        // distance from the root in joint edges
	Local mgl64.Mat4 // inbound joint origin (identity for the root)
	World mgl64.Mat4 // composition of all ancestor joint origins, root→link
}

// Edge is one validated joint.
type Edge struct {
	Joint *object.JointSpec

	// Axis is the unit-length motion axis for revolute/prismatic/continuous
	// joints and the zero vector otherwise.
	Axis mgl64.Vec3
}

// Tree is the rooted, acyclic result of Build.
type Tree struct {
	Name  string
	Root  string
	Nodes map[string]*Node // by link id
	Edges map[string]*Edge // by joint id
	Order []string         // link ids in deterministic pre-order, root first
}

// Node returns the node for a link id, or nil.
func (t *Tree) NodeFor(linkID string) *Node {
	return t.Nodes[linkID]
}

// EdgeFor returns the edge for a joint id, or nil.
func (t *Tree) EdgeFor(jointID string) *Edge {
	return t.Edges[jointID]
}

// LinkCount reports the number of links in the tree.
func (t *Tree) LinkCount() int { return len(t.Nodes) }

// originMatrix converts a translation + fixed-axis RPY rotation into a 4x4
// transform: T * Rz(yaw) * Ry(pitch) * Rx(roll).
func originMatrix(tr object.Transform) mgl64.Mat4 {
	m := mgl64.Translate3D(tr.XYZ[0], tr.XYZ[1], tr.XYZ[2])
	m = m.Mul4(mgl64.HomogRotate3DZ(tr.RPY[2]))
	m = m.Mul4(mgl64.HomogRotate3DY(tr.RPY[1]))
	m = m.Mul4(mgl64.HomogRotate3DX(tr.RPY[0]))
	return m
}
