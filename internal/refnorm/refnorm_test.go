package refnorm

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSanitizeBase(t *testing.T) {
	cases := map[string]string{
		"leg-01.obj":     "leg_01.obj",
		"front door.obj": "front_door.obj",
		"part.v2.obj":    "part.v2.obj",
		"clean_name.obj": "clean_name.obj",
		"weird(1)+x.obj": "weird_1__x.obj",
	}
	for in, want := range cases {
		if got := SanitizeBase(in); got != want {
			t.Errorf("SanitizeBase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalize_AbsoluteReference(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "objs", "leg-01.obj"), "v 0 0 0\n")
	desc := filepath.Join(root, "model.urdf")
	writeFile(t, desc, `<mesh filename="/data/objs/leg-01.obj" scale="1 1 1"/>`+"\n")

	remap, err := Normalize(root, []string{desc})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	want := map[string]string{"leg-01.obj": "leg_01.obj"}
	if diff := cmp.Diff(want, remap.Renames()); diff != "" {
		t.Errorf("renames mismatch (-want +got):\n%s", diff)
	}

	data, _ := os.ReadFile(desc)
	if !strings.Contains(string(data), `filename="objs/leg_01.obj"`) {
		t.Errorf("reference not rewritten:\n%s", data)
	}
	if strings.Contains(string(data), "leg-01") {
		t.Errorf("old name still referenced:\n%s", data)
	}
	if _, err := os.Stat(filepath.Join(root, "objs", "leg_01.obj")); err != nil {
		t.Errorf("renamed asset missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "objs", "leg-01.obj")); !os.IsNotExist(err) {
		t.Errorf("old asset still present")
	}
}

// Every reference left in a description file must resolve to a file on disk
// after normalization.
func TestNormalize_ReferencesResolve(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "objs", "arm-upper.obj"), "v 0 0 0\n")
	writeFile(t, filepath.Join(root, "objs", "base.obj"), "v 0 0 0\n")
	desc := filepath.Join(root, "model.urdf")
	writeFile(t, desc,
		`<mesh filename="objs/arm-upper.obj"/>`+"\n"+
			`<mesh filename="objs/arm-upper.obj"/>`+"\n"+
			`<mesh filename="objs/base.obj"/>`+"\n")

	if _, err := Normalize(root, []string{desc}); err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	data, _ := os.ReadFile(desc)
	refs := regexp.MustCompile(`filename="([^"]+)"`).FindAllStringSubmatch(string(data), -1)
	if len(refs) != 3 {
		t.Fatalf("want 3 references, got %d", len(refs))
	}
	for _, m := range refs {
		p := filepath.Join(filepath.Dir(desc), filepath.FromSlash(m[1]))
		if _, err := os.Stat(p); err != nil {
			t.Errorf("reference %q does not resolve: %v", m[1], err)
		}
	}
}

func TestNormalize_Collision(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "objs", "a-b.obj"), "v 0 0 0\n")
	writeFile(t, filepath.Join(root, "objs", "a_b.obj"), "v 1 0 0\n")
	desc := filepath.Join(root, "model.urdf")
	writeFile(t, desc, `<mesh filename="objs/a-b.obj"/>`+"\n")

	_, err := Normalize(root, []string{desc})
	var ce *NameCollisionError
	if !errors.As(err, &ce) {
		t.Fatalf("want NameCollisionError, got %v", err)
	}
	if ce.Target != "a_b.obj" {
		t.Errorf("collision target: got %q, want a_b.obj", ce.Target)
	}

	// Two-phase rule: nothing was renamed or rewritten.
	if _, err := os.Stat(filepath.Join(root, "objs", "a-b.obj")); err != nil {
		t.Errorf("asset touched despite collision: %v", err)
	}
	data, _ := os.ReadFile(desc)
	if !strings.Contains(string(data), `filename="objs/a-b.obj"`) {
		t.Errorf("description touched despite collision:\n%s", data)
	}
}

func TestNormalize_UnresolvedReference(t *testing.T) {
	root := t.TempDir()
	desc := filepath.Join(root, "model.urdf")
	writeFile(t, desc, `<mesh filename="objs/ghost.obj"/>`+"\n")

	_, err := Normalize(root, []string{desc})
	var ue *UnresolvedReferenceError
	if !errors.As(err, &ue) {
		t.Fatalf("want UnresolvedReferenceError, got %v", err)
	}
	if ue.Ref != "objs/ghost.obj" {
		t.Errorf("ref: got %q", ue.Ref)
	}
}

func TestNormalize_MaterialCompanion(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "objs", "door-left.obj"),
		"mtllib door-left.mtl\nv 0 0 0\n")
	writeFile(t, filepath.Join(root, "objs", "door-left.mtl"), "newmtl wood\n")
	desc := filepath.Join(root, "model.urdf")
	writeFile(t, desc, `<mesh filename="objs/door-left.obj"/>`+"\n")

	if _, err := Normalize(root, []string{desc}); err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	for _, name := range []string{"door_left.obj", "door_left.mtl"} {
		if _, err := os.Stat(filepath.Join(root, "objs", name)); err != nil {
			t.Errorf("renamed %s missing: %v", name, err)
		}
	}
	data, _ := os.ReadFile(filepath.Join(root, "objs", "door_left.obj"))
	if !strings.Contains(string(data), "mtllib door_left.mtl") {
		t.Errorf("mtllib not rewritten:\n%s", data)
	}
}

func TestNormalize_BackupsUntouched(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "objs", "leg-01.obj"), "v 0 0 0\n")
	writeFile(t, filepath.Join(root, "objs", "leg-01.obj.bak"), "v 9 9 9\n")
	desc := filepath.Join(root, "model.urdf")
	writeFile(t, desc, `<mesh filename="objs/leg-01.obj"/>`+"\n")

	if _, err := Normalize(root, []string{desc}); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "objs", "leg-01.obj.bak")); err != nil {
		t.Errorf("backup was renamed: %v", err)
	}
}

func TestFixMJCFPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.xml")
	writeFile(t, path,
		`<mesh file="/home/auth/work/objs/leg_01.obj"/>`+"\n"+
			`<mesh file="/home/auth/work/objs/base.obj"/>`+"\n"+
			`<mesh file="objs/already.obj"/>`+"\n")

	n, err := FixMJCFPaths(path)
	if err != nil {
		t.Fatalf("FixMJCFPaths: %v", err)
	}
	if n != 2 {
		t.Errorf("rewritten count: got %d, want 2", n)
	}
	data, _ := os.ReadFile(path)
	want := `<mesh file="objs/leg_01.obj"/>` + "\n" +
		`<mesh file="objs/base.obj"/>` + "\n" +
		`<mesh file="objs/already.obj"/>` + "\n"
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}

	// Second run: no absolute prefix remains.
	n, err = FixMJCFPaths(path)
	if err != nil || n != 0 {
		t.Errorf("second run: n=%d err=%v", n, err)
	}
}
