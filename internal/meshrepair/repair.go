// Package meshrepair repairs defective mesh geometry produced by upstream
// authoring tools: duplicated vertices, inconsistent face winding, degenerate
// faces, fused face/vertex lines and near-2D geometry that downstream convex
// hull builders reject. A mesh is never modified in place without the
// original bytes being preserved as a .bak alongside it.
package meshrepair

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"articulate/internal/logging"
)

// Config holds the numeric thresholds of the repair passes.
type Config struct {
	// DedupEpsilon is the coordinate grid used to merge duplicate vertices.
	DedupEpsilon float64
	// RelTol marks an axis degenerate when its range is below RelTol times
	// the largest axis range.
	RelTol float64
	// AbsTol marks an axis degenerate regardless of the other axes.
	AbsTol float64
	// MinSpan is the thickness a degenerate axis is inflated to.
	MinSpan float64
	// TetraThickness is the apex height used when a mesh with fewer than
	// four unique vertices is rebuilt as a tetrahedron.
	TetraThickness float64
}

// DefaultConfig returns the thresholds used by the authoring pipeline.
func DefaultConfig() Config {
	return Config{
		DedupEpsilon:   1e-8,
		RelTol:         1e-4,
		AbsTol:         1e-6,
		MinSpan:        1e-3,
		TetraThickness: 1e-3,
	}
}

// Report records what one repair pass did to one mesh.
type Report struct {
	Path string `json:"path"`

	SyntaxLinesRepaired    int  `json:"syntax_lines_repaired"`
	DuplicateVertsRemoved  int  `json:"duplicate_verts_removed"`
	FacesFlipped           int  `json:"faces_flipped"`
	DegenerateFacesRemoved int  `json:"degenerate_faces_removed"`
	AxesInflated           int  `json:"axes_inflated"`
	RebuiltAsTetrahedron   bool `json:"rebuilt_as_tetrahedron"`
	FragmentsFound         int  `json:"fragments_found"`

	BackupRetained bool   `json:"backup_retained"`
	Skipped        bool   `json:"skipped,omitempty"`
	SkipReason     string `json:"skip_reason,omitempty"`
}

// Changed reports whether any pass modified the mesh.
func (r *Report) Changed() bool {
	return r.SyntaxLinesRepaired > 0 ||
		r.DuplicateVertsRemoved > 0 ||
		r.FacesFlipped > 0 ||
		r.DegenerateFacesRemoved > 0 ||
		r.AxesInflated > 0 ||
		r.RebuiltAsTetrahedron
}

// ParseError marks an asset that could not be read as mesh data. The asset is
// passed through unmodified; the object's conversion continues.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse mesh %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Kind() string { return "mesh-parse" }

// Engine applies the repair passes. Safe for concurrent use; it holds no
// per-mesh state.
type Engine struct {
	cfg Config
}

// NewEngine returns an Engine with the given thresholds; zero-value fields
// fall back to DefaultConfig.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.DedupEpsilon == 0 {
		cfg.DedupEpsilon = def.DedupEpsilon
	}
	if cfg.RelTol == 0 {
		cfg.RelTol = def.RelTol
	}
	if cfg.AbsTol == 0 {
		cfg.AbsTol = def.AbsTol
	}
	if cfg.MinSpan == 0 {
		cfg.MinSpan = def.MinSpan
	}
	if cfg.TetraThickness == 0 {
		cfg.TetraThickness = def.TetraThickness
	}
	return &Engine{cfg: cfg}
}

// RepairFile repairs one OBJ on disk. When the repaired content differs from
// the source, the original is renamed to path+".bak" (an existing backup is
// never overwritten) before the repaired bytes are written. A parse failure
// returns a *ParseError and a Report with Skipped set; the file is left
// untouched.
func (e *Engine) RepairFile(path string) (*Report, error) {
	log := logging.New("meshrepair")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mesh: %w", err)
	}

	backup := path + ".bak"
	_, bakErr := os.Stat(backup)
	hasBackup := bakErr == nil

	report, out, err := e.Repair(string(data))
	report.Path = path
	report.BackupRetained = hasBackup
	if err != nil {
		report.Skipped = true
		report.SkipReason = err.Error()
		return report, &ParseError{Path: path, Err: err}
	}

	if !report.Changed() {
		return report, nil
	}

	if !hasBackup {
		if err := os.Rename(path, backup); err != nil {
			return report, fmt.Errorf("back up mesh: %w", err)
		}
		report.BackupRetained = true
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return report, fmt.Errorf("write repaired mesh: %w", err)
	}

	log.Debug("mesh repaired", "path", path,
		"dedup", report.DuplicateVertsRemoved, "flipped", report.FacesFlipped,
		"degenerate", report.DegenerateFacesRemoved, "inflated", report.AxesInflated,
		"tetra", report.RebuiltAsTetrahedron)
	return report, nil
}

// Repair runs the passes over OBJ text and returns the report plus the
// repaired content. Passes run in a fixed order: syntax repair, vertex
// deduplication, winding consistency, degenerate-face removal, then the
// thin-geometry fallbacks.
func (e *Engine) Repair(data string) (*Report, string, error) {
	report := &Report{}

	o, syntaxFixes, err := parseOBJ(data)
	if err != nil {
		return report, data, err
	}
	report.SyntaxLinesRepaired = syntaxFixes

	// Too little geometry to repair: rebuild as a minimal tetrahedron so the
	// physics converter gets a body with volume.
	if uniq := uniqueVertices(o.verts, e.cfg.DedupEpsilon); len(uniq) < 4 {
		report.RebuiltAsTetrahedron = true
		return report, e.buildTetrahedron(o, uniq), nil
	}

	remap := e.dedupVertices(o, report)
	e.fixWinding(o, report)
	e.dropDegenerateFaces(o, report)
	e.inflateDegenerateAxes(o, report)

	return report, o.render(remap), nil
}

// dedupVertices merges vertices that fall on the same DedupEpsilon grid cell
// and renumbers the faces. Returns the old→new index remap, or nil when
// nothing merged.
func (e *Engine) dedupVertices(o *objFile, report *Report) []int {
	type cell [3]int64
	first := make(map[cell]int, len(o.verts))
	for i := range o.verts {
		v := &o.verts[i]
		c := cell{
			int64(math.Round(v.pos.X() / e.cfg.DedupEpsilon)),
			int64(math.Round(v.pos.Y() / e.cfg.DedupEpsilon)),
			int64(math.Round(v.pos.Z() / e.cfg.DedupEpsilon)),
		}
		if k, ok := first[c]; ok {
			v.merged = k
			report.DuplicateVertsRemoved++
		} else {
			first[c] = i
		}
	}
	if report.DuplicateVertsRemoved == 0 {
		return nil
	}

	remap := make([]int, len(o.verts))
	next := 0
	for i := range o.verts {
		if o.verts[i].merged < 0 {
			remap[i] = next
			next++
		}
	}
	for i := range o.verts {
		if k := o.verts[i].merged; k >= 0 {
			remap[i] = remap[k]
		}
	}
	// Collapse the merge inside the faces so later passes see canonical indices.
	for i := range o.faces {
		f := &o.faces[i]
		for k := range f.corners {
			if m := o.verts[f.corners[k].v].merged; m >= 0 {
				f.corners[k].v = m
				f.rewrite = true
			}
		}
	}
	return remap
}

// fixWinding enforces consistent winding per connected face component: the
// lowest-index face of each component seeds the orientation and every face
// sharing an edge in the same direction is flipped. No attempt is made to
// find an absolute outward orientation.
type edgeKey [2]int

func (e *Engine) fixWinding(o *objFile, report *Report) {
	undirected := func(a, b int) edgeKey {
		if a > b {
			a, b = b, a
		}
		return edgeKey{a, b}
	}

	faceEdges := func(f *objFace) [][2]int {
		var edges [][2]int
		n := len(f.corners)
		for i := 0; i < n; i++ {
			edges = append(edges, [2]int{f.corners[i].v, f.corners[(i+1)%n].v})
		}
		return edges
	}

	byEdge := make(map[edgeKey][]int)
	for i := range o.faces {
		if o.faces[i].dropped {
			continue
		}
		for _, ed := range faceEdges(&o.faces[i]) {
			k := undirected(ed[0], ed[1])
			byEdge[k] = append(byEdge[k], i)
		}
	}

	visited := make([]bool, len(o.faces))
	components := 0
	for seed := range o.faces {
		if visited[seed] || o.faces[seed].dropped {
			continue
		}
		components++
		if components > 1 {
			// Fragments beyond the first connected component.
			report.FragmentsFound++
		}
		queue := []int{seed}
		visited[seed] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			curDirected := make(map[edgeKey]bool)
			for _, ed := range faceEdges(&o.faces[cur]) {
				curDirected[edgeKey{ed[0], ed[1]}] = true
			}
			for _, ed := range faceEdges(&o.faces[cur]) {
				for _, nb := range byEdge[undirected(ed[0], ed[1])] {
					if nb == cur || visited[nb] {
						continue
					}
					visited[nb] = true
					// Consistent neighbors traverse a shared edge in opposite
					// directions; a same-direction traversal means the
					// neighbor's winding disagrees.
					if sharesDirectedEdge(&o.faces[nb], curDirected) {
						flipFace(&o.faces[nb])
						report.FacesFlipped++
					}
					queue = append(queue, nb)
				}
			}
		}
	}
}

func sharesDirectedEdge(f *objFace, directed map[edgeKey]bool) bool {
	n := len(f.corners)
	for i := 0; i < n; i++ {
		a, b := f.corners[i].v, f.corners[(i+1)%n].v
		if directed[edgeKey{a, b}] {
			return true
		}
	}
	return false
}

func flipFace(f *objFace) {
	for i, k := 0, len(f.corners)-1; i < k; i, k = i+1, k-1 {
		f.corners[i], f.corners[k] = f.corners[k], f.corners[i]
	}
	f.rewrite = true
}

// dropDegenerateFaces removes faces whose corners collapse to fewer than
// three distinct vertices or whose area is numerically zero.
func (e *Engine) dropDegenerateFaces(o *objFile, report *Report) {
	for i := range o.faces {
		f := &o.faces[i]
		if f.dropped {
			continue
		}
		distinct := make(map[int]bool, len(f.corners))
		for _, c := range f.corners {
			distinct[c.v] = true
		}
		if len(distinct) < 3 || e.faceArea(o, f) < 1e-14 {
			f.dropped = true
			report.DegenerateFacesRemoved++
		}
	}
}

// faceArea computes polygon area by fanning from the first corner.
func (e *Engine) faceArea(o *objFile, f *objFace) float64 {
	p0 := o.verts[f.corners[0].v].pos
	area := 0.0
	for i := 1; i+1 < len(f.corners); i++ {
		p1 := o.verts[f.corners[i].v].pos
		p2 := o.verts[f.corners[i+1].v].pos
		area += p1.Sub(p0).Cross(p2.Sub(p0)).Len() / 2
	}
	return area
}

// inflateDegenerateAxes stretches nearly-flat geometry so hull builders do
// not see a flat initial simplex. The target span clears both the absolute
// and relative thresholds, which keeps the pass from re-firing on its own
// output.
func (e *Engine) inflateDegenerateAxes(o *objFile, report *Report) {
	alive := aliveVerts(o)
	if len(alive) == 0 {
		return
	}

	mins := mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	maxs := mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, vi := range alive {
		p := o.verts[vi].pos
		for a := 0; a < 3; a++ {
			mins[a] = math.Min(mins[a], p[a])
			maxs[a] = math.Max(maxs[a], p[a])
		}
	}
	ranges := maxs.Sub(mins)
	maxRange := math.Max(ranges[0], math.Max(ranges[1], ranges[2]))

	for a := 0; a < 3; a++ {
		degenerate := ranges[a] < e.cfg.AbsTol || (maxRange > 0 && ranges[a] < e.cfg.RelTol*maxRange)
		if !degenerate {
			continue
		}
		report.AxesInflated++
		target := math.Max(e.cfg.MinSpan, 2*e.cfg.RelTol*maxRange)
		center := (mins[a] + maxs[a]) / 2
		n := len(alive)
		for k, vi := range alive {
			v := &o.verts[vi]
			t := -0.5
			if n > 1 {
				t = float64(k)/float64(n-1) - 0.5
			}
			v.pos[a] = center + t*target
			v.rewrite = true
		}
	}
}

// aliveVerts returns indices of surviving vertices in line order.
func aliveVerts(o *objFile) []int {
	var out []int
	for i := range o.verts {
		if o.verts[i].merged < 0 {
			out = append(out, i)
		}
	}
	return out
}

// uniqueVertices returns one representative position per DedupEpsilon cell.
func uniqueVertices(verts []objVertex, eps float64) []mgl64.Vec3 {
	type cell [3]int64
	seen := make(map[cell]bool, len(verts))
	var out []mgl64.Vec3
	for i := range verts {
		p := verts[i].pos
		c := cell{
			int64(math.Round(p.X() / eps)),
			int64(math.Round(p.Y() / eps)),
			int64(math.Round(p.Z() / eps)),
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, p)
		}
	}
	return out
}

// buildTetrahedron rewrites the mesh as a minimal solid tetrahedron seeded
// from up to three of its unique points, preserving the mtllib reference.
func (e *Engine) buildTetrahedron(o *objFile, uniq []mgl64.Vec3) string {
	base := basePoints(uniq)
	p1, p2, p3 := base[0], base[1], base[2]

	normal := p2.Sub(p1).Cross(p3.Sub(p1))
	if l := normal.Len(); l > 1e-12 {
		normal = normal.Mul(1 / l)
	} else {
		normal = mgl64.Vec3{0, 0, 1}
	}
	centroid := p1.Add(p2).Add(p3).Mul(1.0 / 3.0)
	apex := centroid.Add(normal.Mul(e.cfg.TetraThickness))

	var b []string
	if o.mtllibLine >= 0 {
		b = append(b, o.lines[o.mtllibLine])
	}
	for _, p := range []mgl64.Vec3{p1, p2, p3, apex} {
		b = append(b, fmt.Sprintf("v %.8f %.8f %.8f", p.X(), p.Y(), p.Z()))
	}
	// Consistently wound: every shared edge is traversed once per direction.
	b = append(b, "f 1 2 3", "f 1 4 2", "f 2 4 3", "f 3 4 1", "")
	return strings.Join(b, "\n")
}

// basePoints completes the tetrahedron base to three points when the mesh
// supplies fewer: two points gain a perpendicular midpoint offset, one point
// gains two small axis offsets.
func basePoints(uniq []mgl64.Vec3) [3]mgl64.Vec3 {
	switch len(uniq) {
	case 0:
		return [3]mgl64.Vec3{{0, 0, 0}, {1e-3, 0, 0}, {0, 1e-3, 0}}
	case 1:
		p := uniq[0]
		return [3]mgl64.Vec3{p, p.Add(mgl64.Vec3{1e-3, 0, 0}), p.Add(mgl64.Vec3{0, 1e-3, 0})}
	case 2:
		p1, p2 := uniq[0], uniq[1]
		mid := p1.Add(p2).Mul(0.5)
		v := p2.Sub(p1)
		ref := mgl64.Vec3{1, 0, 0}
		if math.Abs(v.X()) >= math.Abs(v.Y()) {
			ref = mgl64.Vec3{0, 1, 0}
		}
		n := v.Cross(ref)
		if l := n.Len(); l > 1e-12 {
			n = n.Mul(1 / l)
		} else {
			n = mgl64.Vec3{0, 0, 1}
		}
		return [3]mgl64.Vec3{p1, p2, mid.Add(n.Mul(1e-3))}
	default:
		return [3]mgl64.Vec3{uniq[0], uniq[1], uniq[2]}
	}
}
