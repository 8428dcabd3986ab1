// Package object defines the on-disk description of one articulated object:
// an unordered collection of links and joints plus top-level metadata, as
// produced by the upstream authoring pipeline. The description is read-only
// input; validation and tree construction live in internal/kintree.
package object

// JointType enumerates the supported joint kinds.
type JointType string

const (
	Fixed      JointType = "fixed"
	Revolute   JointType = "revolute"
	Prismatic  JointType = "prismatic"
	Continuous JointType = "continuous"
	Floating   JointType = "floating"
)

// Known reports whether t is one of the supported joint types.
func (t JointType) Known() bool {
	switch t {
	case Fixed, Revolute, Prismatic, Continuous, Floating:
		return true
	}
	return false
}

// Movable reports whether the joint type requires an axis of motion.
func (t JointType) Movable() bool {
	switch t {
	case Revolute, Prismatic, Continuous:
		return true
	}
	return false
}

// Description is the raw per-object input. Immutable once loaded.
type Description struct {
	Name   string      `json:"name" yaml:"name"`
	Root   string      `json:"root,omitempty" yaml:"root,omitempty"` // root link hint, may be empty
	Links  []LinkSpec  `json:"links" yaml:"links"`
	Joints []JointSpec `json:"joints" yaml:"joints"`
}

// LinkSpec describes one rigid body segment.
type LinkSpec struct {
	ID       string          `json:"id" yaml:"id"`
	Meshes   []MeshReference `json:"meshes,omitempty" yaml:"meshes,omitempty"`
	Inertial *Inertial       `json:"inertial,omitempty" yaml:"inertial,omitempty"`
}

// MeshReference points a link at on-disk geometry, with the transform and
// scale applied when the mesh is attached to the link.
type MeshReference struct {
	Path   string     `json:"path" yaml:"path"`
	Offset [3]float64 `json:"offset,omitempty" yaml:"offset,omitempty"`
	Scale  [3]float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
}

// EffectiveScale returns the mesh scale, treating the zero value as 1,1,1.
func (m MeshReference) EffectiveScale() [3]float64 {
	if m.Scale == ([3]float64{}) {
		return [3]float64{1, 1, 1}
	}
	return m.Scale
}

// Inertial is the optional inertial summary of a link.
type Inertial struct {
	Mass    float64    `json:"mass" yaml:"mass"`
	Center  [3]float64 `json:"center,omitempty" yaml:"center,omitempty"`
	Inertia [6]float64 `json:"inertia,omitempty" yaml:"inertia,omitempty"` // ixx ixy ixz iyy iyz izz
}

// Transform is a translation plus fixed-axis roll/pitch/yaw rotation,
// expressed in the parent link's frame.
type Transform struct {
	XYZ [3]float64 `json:"xyz,omitempty" yaml:"xyz,omitempty"`
	RPY [3]float64 `json:"rpy,omitempty" yaml:"rpy,omitempty"`
}

// Limits bounds a joint's motion. Lower/Upper are radians for revolute
// joints and meters for prismatic ones.
type Limits struct {
	Lower    float64 `json:"lower" yaml:"lower"`
	Upper    float64 `json:"upper" yaml:"upper"`
	Effort   float64 `json:"effort,omitempty" yaml:"effort,omitempty"`
	Velocity float64 `json:"velocity,omitempty" yaml:"velocity,omitempty"`
}

// JointSpec describes one parent→child constraint edge.
type JointSpec struct {
	ID     string      `json:"id" yaml:"id"`
	Type   JointType   `json:"type" yaml:"type"`
	Parent string      `json:"parent" yaml:"parent"`
	Child  string      `json:"child" yaml:"child"`
	Origin Transform   `json:"origin,omitempty" yaml:"origin,omitempty"`
	Axis   *[3]float64 `json:"axis,omitempty" yaml:"axis,omitempty"`
	Limits *Limits     `json:"limits,omitempty" yaml:"limits,omitempty"`
}

// MeshPaths returns every mesh path referenced by the description, in
// declaration order, without deduplication.
func (d *Description) MeshPaths() []string {
	var paths []string
	for _, l := range d.Links {
		for _, m := range l.Meshes {
			paths = append(paths, m.Path)
		}
	}
	return paths
}
