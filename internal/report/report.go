// Package report renders batch, repair and tree summaries as tables, in
// ASCII for terminals or Markdown for logs and tickets.
package report

import (
	"fmt"
	"strings"

	"articulate/internal/batch"
	"articulate/internal/format"
	"articulate/internal/kintree"
	"articulate/internal/meshrepair"
)

// Batch renders the per-object outcome table of one run.
func Batch(s *batch.Summary, mode format.Mode) string {
	tb := format.NewTable(mode)
	tb.Header("Object", "Status", "Kind", "Detail")
	for _, r := range s.Results {
		status := "OK"
		kind := ""
		detail := successDetail(r)
		if r.Err != nil {
			status = "FAIL"
			kind = r.Kind
			detail = format.Truncate(firstLine(r.Err.Error()), 60)
		}
		tb.Row(r.Name, status, kind, detail)
	}
	tb.Footer(fmt.Sprintf("%d objects", s.Total),
		fmt.Sprintf("%d ok / %d failed", s.Succeeded, s.Failed),
		"", format.FmtDuration(s.Elapsed))
	tb.Columns(format.ColumnConfig{Number: 4, MaxWidth: 64})
	return tb.String()
}

func successDetail(r batch.ObjectResult) string {
	if r.Result == nil {
		return ""
	}
	parts := []string{fmt.Sprintf("%d meshes", len(r.Result.RepairReports))}
	if n := len(r.Result.Renames); n > 0 {
		parts = append(parts, fmt.Sprintf("%d renamed", n))
	}
	if n := len(r.Result.Warnings); n > 0 {
		parts = append(parts, fmt.Sprintf("%d warnings", n))
	}
	return strings.Join(parts, ", ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Repairs renders what the repair passes did per mesh.
func Repairs(reports []*meshrepair.Report, mode format.Mode) string {
	tb := format.NewTable(mode)
	tb.Header("Mesh", "Dedup", "Flipped", "Dropped", "Inflated", "Tetra", "Backup")
	for _, r := range reports {
		if r.Skipped {
			tb.Row(r.Path, "-", "-", "-", "-", "-", "skipped: "+format.Truncate(r.SkipReason, 40))
			continue
		}
		tb.Row(r.Path,
			r.DuplicateVertsRemoved, r.FacesFlipped, r.DegenerateFacesRemoved,
			r.AxesInflated, format.BoolMark(r.RebuiltAsTetrahedron), format.BoolMark(r.BackupRetained))
	}
	var cfgs []format.ColumnConfig
	for i := 2; i <= 5; i++ {
		cfgs = append(cfgs, format.ColumnConfig{Number: i, Align: format.AlignRight})
	}
	tb.Columns(cfgs...)
	return tb.String()
}

// Tree renders a validated kinematic tree: one row per link in traversal
// order, indented by depth, with the inbound joint and the link's accumulated
// world position.
func Tree(t *kintree.Tree, mode format.Mode) string {
	tb := format.NewTable(mode)
	tb.Header("Link", "Depth", "Joint", "Type", "Position")
	for _, id := range t.Order {
		n := t.NodeFor(id)
		joint, jtype := "-", "-"
		if n.ParentJoint != "" {
			e := t.EdgeFor(n.ParentJoint)
			joint = e.Joint.ID
			jtype = string(e.Joint.Type)
		}
		pos := n.World.Col(3).Vec3()
		tb.Row(strings.Repeat("  ", n.Depth)+id, n.Depth, joint, jtype,
			fmt.Sprintf("%.3f %.3f %.3f", pos.X(), pos.Y(), pos.Z()))
	}
	tb.Columns(format.ColumnConfig{Number: 2, Align: format.AlignRight})
	return tb.String()
}
