package meshrepair

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func repairText(t *testing.T, data string) (*Report, string) {
	t.Helper()
	e := NewEngine(Config{})
	report, out, err := e.Repair(data)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	return report, out
}

func TestRepair_SplitsFusedLines(t *testing.T) {
	data := "v 0 0 0\nv 1 0 0\nv 0 1 0\nv 0 0 5\nf 1 2 3v 9 9 9\nf 1 2 4\n"
	report, out := repairText(t, data)
	if report.SyntaxLinesRepaired != 1 {
		t.Errorf("syntax repairs: got %d, want 1", report.SyntaxLinesRepaired)
	}
	if !strings.Contains(out, "v 9 9 9\n") {
		t.Errorf("detached vertex line missing:\n%s", out)
	}
}

func TestRepair_DedupVertices(t *testing.T) {
	// v4 duplicates v1; the second face must be renumbered onto v1.
	data := "v 0 0 0\nv 1 0 0\nv 0 1 0\nv 0 0 0\nv 0 0 1\nf 1 2 3\nf 2 4 5\n"
	report, out := repairText(t, data)
	if report.DuplicateVertsRemoved != 1 {
		t.Errorf("dedup count: got %d, want 1", report.DuplicateVertsRemoved)
	}
	if got := strings.Count(out, "v 0 0 0\n"); got != 1 {
		t.Errorf("duplicate vertex line still present (%d occurrences):\n%s", got, out)
	}
	if !strings.Contains(out, "f 2 1 4\n") {
		t.Errorf("face not renumbered:\n%s", out)
	}
}

func TestRepair_WindingConsistency(t *testing.T) {
	// Both triangles traverse the shared 3→1 edge in the same direction, so
	// the second one disagrees with the seed and must flip.
	data := "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 1\nf 1 2 3\nf 3 1 4\n"
	report, out := repairText(t, data)
	if report.FacesFlipped != 1 {
		t.Errorf("flips: got %d, want 1", report.FacesFlipped)
	}
	if !strings.Contains(out, "f 4 1 3\n") {
		t.Errorf("flipped face missing:\n%s", out)
	}
	if !strings.Contains(out, "f 1 2 3\n") {
		t.Errorf("seed face must not change:\n%s", out)
	}
}

func TestRepair_DropsDegenerateFaces(t *testing.T) {
	// f 1 2 2 collapses to two vertices; f 1 2 5 is collinear.
	data := "v 0 0 0\nv 1 0 0\nv 0 1 0\nv 0 0 2\nv 2 0 0\nf 1 2 3\nf 1 2 2\nf 1 2 5\nf 1 3 4\n"
	report, out := repairText(t, data)
	if report.DegenerateFacesRemoved != 2 {
		t.Errorf("degenerate removals: got %d, want 2", report.DegenerateFacesRemoved)
	}
	if strings.Contains(out, "f 1 2 2") || strings.Contains(out, "f 1 2 5") {
		t.Errorf("degenerate face still present:\n%s", out)
	}
}

func TestRepair_InflatesFlatAxis(t *testing.T) {
	data := "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nf 1 2 3\nf 1 3 4\n"
	report, out := repairText(t, data)
	if report.AxesInflated != 1 {
		t.Fatalf("axes inflated: got %d, want 1", report.AxesInflated)
	}

	second, _ := repairText(t, out)
	if second.Changed() {
		t.Errorf("second pass still changes the mesh: %+v", second)
	}
}

func TestRepair_RebuildsTetrahedron(t *testing.T) {
	data := "mtllib part.mtl\nv 0 0 0\nv 0 0 0\nf 1 2 1\n"
	report, out := repairText(t, data)
	if !report.RebuiltAsTetrahedron {
		t.Fatalf("expected tetrahedron rebuild, report %+v", report)
	}
	if !strings.HasPrefix(out, "mtllib part.mtl\n") {
		t.Errorf("mtllib not preserved:\n%s", out)
	}
	if got := strings.Count(out, "\nf "); got != 4 {
		t.Errorf("want 4 faces, got %d:\n%s", got, out)
	}
	if got := strings.Count(out, "\nv "); got != 4 {
		t.Errorf("want 4 vertices, got %d:\n%s", got, out)
	}

	second, _ := repairText(t, out)
	if second.Changed() {
		t.Errorf("tetrahedron not stable under repair: %+v", second)
	}
}

func TestRepair_Idempotent(t *testing.T) {
	dirty := "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nv 1 0 0\nf 1 2 3\nf 3 1 4\nf 1 2 5\n"
	first, out := repairText(t, dirty)
	if !first.Changed() {
		t.Fatalf("first pass should repair something: %+v", first)
	}
	second, out2 := repairText(t, out)
	if second.Changed() {
		t.Errorf("second pass not clean: %+v", second)
	}
	if out != out2 {
		t.Errorf("second pass rewrote content:\n%s\nvs\n%s", out, out2)
	}
}

func TestRepairFile_BackupAndSkip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leg.obj")
	dirty := "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nf 1 2 3\nf 3 1 4\n"
	if err := os.WriteFile(path, []byte(dirty), 0o644); err != nil {
		t.Fatal(err)
	}

	e := NewEngine(Config{})
	report, err := e.RepairFile(path)
	if err != nil {
		t.Fatalf("RepairFile: %v", err)
	}
	if !report.BackupRetained {
		t.Error("backup not retained")
	}
	bak, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if string(bak) != dirty {
		t.Error("backup does not hold the original bytes")
	}

	// Second run: no changes, backup untouched.
	report2, err := e.RepairFile(path)
	if err != nil {
		t.Fatalf("RepairFile second run: %v", err)
	}
	if report2.Changed() {
		t.Errorf("second run changed the mesh: %+v", report2)
	}

	// Unparseable asset: passed through, ParseError reported.
	bad := filepath.Join(dir, "bad.obj")
	if err := os.WriteFile(bad, []byte("v 1 nope 3\nf 1 2 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	badReport, err := e.RepairFile(bad)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("want ParseError, got %v", err)
	}
	if !badReport.Skipped {
		t.Error("skip not recorded")
	}
	content, _ := os.ReadFile(bad)
	if string(content) != "v 1 nope 3\nf 1 2 3\n" {
		t.Error("unparseable asset was modified")
	}
}
