package object

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const cabinetYAML = `name: cabinet
root: base
links:
  - id: base
    meshes:
      - path: objs/base.obj
        scale: [0.001, 0.001, 0.001]
  - id: drawer
joints:
  - id: slide
    type: prismatic
    parent: base
    child: drawer
    origin:
      xyz: [0, 0, 0.3]
    axis: [1, 0, 0]
    limits:
      lower: 0
      upper: 0.45
`

func TestLoad_YAML(t *testing.T) {
	d, err := Load([]byte(cabinetYAML), ".yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Name != "cabinet" || d.Root != "base" {
		t.Errorf("metadata: %+v", d)
	}
	if len(d.Links) != 2 || len(d.Joints) != 1 {
		t.Fatalf("counts: links=%d joints=%d", len(d.Links), len(d.Joints))
	}

	j := d.Joints[0]
	if j.Type != Prismatic || j.Axis == nil || *j.Axis != [3]float64{1, 0, 0} {
		t.Errorf("joint: %+v", j)
	}
	if j.Limits == nil || j.Limits.Upper != 0.45 {
		t.Errorf("limits: %+v", j.Limits)
	}
	if diff := cmp.Diff([]string{"objs/base.obj"}, d.MeshPaths()); diff != "" {
		t.Errorf("mesh paths (-want +got):\n%s", diff)
	}
	if got := d.Links[0].Meshes[0].EffectiveScale(); got != [3]float64{0.001, 0.001, 0.001} {
		t.Errorf("scale: %v", got)
	}
}

func TestLoad_JSONSniffed(t *testing.T) {
	data := `{"name": "lamp", "links": [{"id": "base"}]}`
	d, err := Load([]byte(data), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Name != "lamp" || len(d.Links) != 1 {
		t.Errorf("sniffed json: %+v", d)
	}
}

func TestLoad_FieldValidation(t *testing.T) {
	cases := map[string]string{
		"no links":       `name: x`,
		"link no id":     "name: x\nlinks:\n  - meshes: []\n",
		"unknown type":   "name: x\nlinks:\n  - id: a\n  - id: b\njoints:\n  - id: j\n    type: warp\n    parent: a\n    child: b\n",
		"missing parent": "name: x\nlinks:\n  - id: a\n  - id: b\njoints:\n  - id: j\n    type: fixed\n    child: b\n",
	}
	for name, data := range cases {
		if _, err := Load([]byte(data), ".yaml"); err == nil {
			t.Errorf("%s: want error", name)
		}
	}
}

func TestFindDescription(t *testing.T) {
	dir := t.TempDir()
	if _, err := FindDescription(dir); err == nil {
		t.Error("want error for empty dir")
	}

	path := filepath.Join(dir, "object.yaml")
	if err := os.WriteFile(path, []byte(cabinetYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	found, err := FindDescription(dir)
	if err != nil {
		t.Fatalf("FindDescription: %v", err)
	}
	if found != path {
		t.Errorf("found %q, want %q", found, path)
	}
}

func TestJointType(t *testing.T) {
	if !Revolute.Movable() || Fixed.Movable() || Floating.Movable() {
		t.Error("Movable misclassifies")
	}
	if !Floating.Known() || JointType("warp").Known() {
		t.Error("Known misclassifies")
	}
}
