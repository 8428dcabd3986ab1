// Package urdf writes a validated kinematic tree as a URDF robot document.
//
// Mesh visual/collision origins follow the authoring convention of the
// upstream pipeline: movable links carry their geometry in the frame of their
// inbound joint, so the mesh origin is the negated joint translation; fixed
// children inherit the negated translation of the parent's inbound joint; the
// root sits at zero.
package urdf

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"strings"

	"articulate/internal/kintree"
	"articulate/internal/object"
)

// Options controls encoding behavior.
type Options struct {
	// DegreeLimits interprets revolute/continuous limits as degrees and
	// converts them to radians, matching authoring tools that export ranges
	// in degrees. Prismatic limits are always meters and never converted.
	DegreeLimits bool
}

const (
	defaultEffort   = 10
	defaultVelocity = 1
)

type robot struct {
	XMLName xml.Name  `xml:"robot"`
	Name    string    `xml:"name,attr"`
	Links   []xmlLink `xml:"link"`
	Joints  []xmlJoint `xml:"joint"`
}

type xmlLink struct {
	Name      string        `xml:"name,attr"`
	Visuals   []xmlGeomElem `xml:"visual"`
	Collision []xmlGeomElem `xml:"collision"`
	Inertial  *xmlInertial  `xml:"inertial,omitempty"`
}

type xmlGeomElem struct {
	Origin   xmlOrigin   `xml:"origin"`
	Geometry xmlGeometry `xml:"geometry"`
}

type xmlGeometry struct {
	Mesh xmlMesh `xml:"mesh"`
}

type xmlMesh struct {
	Filename string `xml:"filename,attr"`
	Scale    string `xml:"scale,attr,omitempty"`
}

type xmlOrigin struct {
	XYZ string `xml:"xyz,attr"`
	RPY string `xml:"rpy,attr"`
}

type xmlInertial struct {
	Origin  xmlOrigin  `xml:"origin"`
	Mass    xmlMass    `xml:"mass"`
	Inertia xmlInertia `xml:"inertia"`
}

type xmlMass struct {
	Value string `xml:"value,attr"`
}

type xmlInertia struct {
	IXX string `xml:"ixx,attr"`
	IXY string `xml:"ixy,attr"`
	IXZ string `xml:"ixz,attr"`
	IYY string `xml:"iyy,attr"`
	IYZ string `xml:"iyz,attr"`
	IZZ string `xml:"izz,attr"`
}

type xmlJoint struct {
	Name   string      `xml:"name,attr"`
	Type   string      `xml:"type,attr"`
	Parent xmlLinkRef  `xml:"parent"`
	Child  xmlLinkRef  `xml:"child"`
	Origin xmlOrigin   `xml:"origin"`
	Axis   *xmlAxis    `xml:"axis,omitempty"`
	Limit  *xmlLimit   `xml:"limit,omitempty"`
}

type xmlLinkRef struct {
	Link string `xml:"link,attr"`
}

type xmlAxis struct {
	XYZ string `xml:"xyz,attr"`
}

type xmlLimit struct {
	Lower    string `xml:"lower,attr,omitempty"`
	Upper    string `xml:"upper,attr,omitempty"`
	Effort   string `xml:"effort,attr"`
	Velocity string `xml:"velocity,attr"`
}

// Encode renders the tree as an indented URDF document.
func Encode(t *kintree.Tree, opts Options) ([]byte, error) {
	names := displayNames(t)

	r := robot{Name: t.Name}
	if r.Name == "" {
		r.Name = "articulated_object"
	}

	for _, linkID := range t.Order {
		n := t.NodeFor(linkID)
		origin := meshOrigin(t, linkID)
		originAttr := xmlOrigin{XYZ: vec3Attr(origin), RPY: "0 0 0"}

		xl := xmlLink{Name: names[linkID]}
		for _, m := range n.Link.Meshes {
			elemOrigin := originAttr
			if m.Offset != ([3]float64{}) {
				elemOrigin.XYZ = vec3Attr([3]float64{
					origin[0] + m.Offset[0],
					origin[1] + m.Offset[1],
					origin[2] + m.Offset[2],
				})
			}
			mesh := xmlMesh{Filename: m.Path}
			if s := m.EffectiveScale(); s != ([3]float64{1, 1, 1}) {
				mesh.Scale = vec3Attr(s)
			}
			geom := xmlGeomElem{Origin: elemOrigin, Geometry: xmlGeometry{Mesh: mesh}}
			xl.Visuals = append(xl.Visuals, geom)
			xl.Collision = append(xl.Collision, geom)
		}
		xl.Inertial = inertialFor(t, linkID, originAttr)
		r.Links = append(r.Links, xl)
	}

	for _, linkID := range t.Order {
		n := t.NodeFor(linkID)
		if n.ParentJoint == "" {
			continue
		}
		e := t.EdgeFor(n.ParentJoint)
		j := e.Joint

		xj := xmlJoint{
			Name:   "joint_" + names[linkID],
			Type:   string(j.Type),
			Parent: xmlLinkRef{Link: names[j.Parent]},
			Child:  xmlLinkRef{Link: names[linkID]},
			Origin: xmlOrigin{XYZ: vec3Attr(j.Origin.XYZ), RPY: vec3Attr(j.Origin.RPY)},
		}
		if j.Type.Movable() {
			xj.Axis = &xmlAxis{XYZ: fmt.Sprintf("%g %g %g", e.Axis.X(), e.Axis.Y(), e.Axis.Z())}
			xj.Limit = limitFor(j, opts)
		}
		r.Joints = append(r.Joints, xj)
	}

	out, err := xml.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal urdf: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// WriteFile encodes the tree and writes it to path.
func WriteFile(path string, t *kintree.Tree, opts Options) error {
	data, err := Encode(t, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write urdf: %w", err)
	}
	return nil
}

// meshOrigin computes the geometry origin for a link per the authoring
// convention described in the package comment.
func meshOrigin(t *kintree.Tree, linkID string) [3]float64 {
	n := t.NodeFor(linkID)
	if n.ParentJoint == "" {
		return [3]float64{}
	}
	j := t.EdgeFor(n.ParentJoint).Joint
	if j.Type.Movable() {
		return negate(j.Origin.XYZ)
	}
	// Fixed child: geometry is authored in the frame of the movable parent.
	parent := t.NodeFor(j.Parent)
	if parent.ParentJoint == "" {
		return [3]float64{}
	}
	return negate(t.EdgeFor(parent.ParentJoint).Joint.Origin.XYZ)
}

func negate(v [3]float64) [3]float64 {
	return [3]float64{-v[0], -v[1], -v[2]}
}

// inertialFor uses the authored inertial summary when present, otherwise
// fills in per-joint-type defaults so the physics converter always sees a
// complete link.
func inertialFor(t *kintree.Tree, linkID string, origin xmlOrigin) *xmlInertial {
	n := t.NodeFor(linkID)
	if in := n.Link.Inertial; in != nil {
		return &xmlInertial{
			Origin: xmlOrigin{XYZ: vec3Attr(in.Center), RPY: "0 0 0"},
			Mass:   xmlMass{Value: fmt.Sprintf("%g", in.Mass)},
			Inertia: xmlInertia{
				IXX: fmt.Sprintf("%g", in.Inertia[0]),
				IXY: fmt.Sprintf("%g", in.Inertia[1]),
				IXZ: fmt.Sprintf("%g", in.Inertia[2]),
				IYY: fmt.Sprintf("%g", in.Inertia[3]),
				IYZ: fmt.Sprintf("%g", in.Inertia[4]),
				IZZ: fmt.Sprintf("%g", in.Inertia[5]),
			},
		}
	}

	mass, inertia := defaultMassInertia(t, linkID)
	return &xmlInertial{
		Origin: origin,
		Mass:   xmlMass{Value: fmt.Sprintf("%g", mass)},
		Inertia: xmlInertia{
			IXX: fmt.Sprintf("%g", inertia), IXY: "0", IXZ: "0",
			IYY: fmt.Sprintf("%g", inertia), IYZ: "0",
			IZZ: fmt.Sprintf("%g", inertia),
		},
	}
}

// defaultMassInertia picks per-type defaults: the base is heavy, fixed
// attachments are light, drawers and doors sit in between.
func defaultMassInertia(t *kintree.Tree, linkID string) (mass, inertia float64) {
	n := t.NodeFor(linkID)
	if n.ParentJoint == "" {
		return 10.0, 0.1
	}
	switch t.EdgeFor(n.ParentJoint).Joint.Type {
	case object.Fixed:
		return 0.1, 0.001
	case object.Prismatic:
		return 3.0, 0.03
	case object.Revolute:
		return 2.0, 0.02
	default:
		return 1.0, 0.01
	}
}

// limitFor renders joint limits, falling back to per-type defaults when the
// description omits them. Continuous joints never carry position bounds.
func limitFor(j *object.JointSpec, opts Options) *xmlLimit {
	lim := xmlLimit{
		Effort:   fmt.Sprintf("%g", float64(defaultEffort)),
		Velocity: fmt.Sprintf("%g", float64(defaultVelocity)),
	}

	if j.Limits == nil {
		switch j.Type {
		case object.Prismatic:
			lim.Lower, lim.Upper = "-0.5", "0.5"
		case object.Revolute:
			lim.Lower, lim.Upper = "0", "3.14159"
		}
		return &lim
	}

	lower, upper := j.Limits.Lower, j.Limits.Upper
	if opts.DegreeLimits && (j.Type == object.Revolute || j.Type == object.Continuous) {
		lower = lower * math.Pi / 180
		upper = upper * math.Pi / 180
	}
	if j.Limits.Effort != 0 {
		lim.Effort = fmt.Sprintf("%g", j.Limits.Effort)
	}
	if j.Limits.Velocity != 0 {
		lim.Velocity = fmt.Sprintf("%g", j.Limits.Velocity)
	}
	if j.Type != object.Continuous {
		lim.Lower = fmt.Sprintf("%.6f", lower)
		lim.Upper = fmt.Sprintf("%.6f", upper)
	}
	return &lim
}

// displayNames maps link ids to URDF link names: disallowed characters become
// underscores and sanitized collisions between distinct links get numeric
// suffixes in tree order.
func displayNames(t *kintree.Tree) map[string]string {
	names := make(map[string]string, len(t.Order))
	counts := make(map[string]int)
	for _, id := range t.Order {
		base := SanitizeName(id)
		counts[base]++
		if counts[base] > 1 {
			names[id] = fmt.Sprintf("%s_%d", base, counts[base])
		} else {
			names[id] = base
		}
	}
	return names
}

// SanitizeName replaces spaces, hyphens and dots with underscores.
func SanitizeName(name string) string {
	r := strings.NewReplacer(" ", "_", "-", "_", ".", "_")
	return r.Replace(name)
}

func vec3Attr(v [3]float64) string {
	return fmt.Sprintf("%.6f %.6f %.6f", v[0], v[1], v[2])
}
