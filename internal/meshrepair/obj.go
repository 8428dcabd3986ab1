package meshrepair

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// objFile is a line-preserving view of a Wavefront OBJ: geometry is parsed
// into verts/faces while every other line passes through the repair pipeline
// untouched. Lines are only re-rendered when a pass actually modified them.
type objFile struct {
	lines []string // syntax-repaired source, no trailing newline

	verts []objVertex
	faces []objFace

	mtllibLine int // index into lines, -1 if absent
}

type objVertex struct {
	pos     mgl64.Vec3
	line    int
	rest    string // tokens after x y z (vertex colors, w), "" if none
	merged  int    // index of the surviving vertex, -1 if this one survives
	rewrite bool   // coordinates changed, re-render the line
}

type objFace struct {
	line    int
	corners []objCorner
	dropped bool
	rewrite bool
}

/// objCorner is one face corner: a vertex index plus the untouched
// "/vt/vn" suffix of the original token.
type objCorner struct {
	v    int // 0-based
	rest string
}

// splitFusedLines repairs the authoring-tool artifact where a vertex line is
// appended to a face line without a newline ("f 3/1/2 2/2/2 1/3/2v -0.15 ...").
// Returns the repaired lines and how many were split.
func splitFusedLines(raw []string) ([]string, int) {
	var out []string
	repaired := 0
	for _, s := range raw {
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "f ") {
			if idx := strings.Index(trimmed[2:], "v "); idx >= 0 {
				at := idx + 2
				left := strings.TrimSpace(trimmed[:at])
				right := strings.TrimSpace(trimmed[at:])
				out = append(out, left, right)
				repaired++
				continue
			}
		}
		out = append(out, s)
	}
	return out, repaired
}

// parseOBJ builds the structured view. A malformed vertex or face index is a
// parse failure for the whole asset.
func parseOBJ(data string) (*objFile, int, error) {
	raw := strings.Split(strings.ReplaceAll(data, "\r\n", "\n"), "\n")
	lines, repaired := splitFusedLines(raw)

	o := &objFile{lines: lines, mtllibLine: -1}
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "mtllib ") && o.mtllibLine < 0:
			o.mtllibLine = i
		case strings.HasPrefix(trimmed, "v "):
			fields := strings.Fields(trimmed)
			if len(fields) < 4 {
				return nil, 0, fmt.Errorf("line %d: vertex with fewer than 3 coordinates", i+1)
			}
			var pos mgl64.Vec3
			for k := 0; k < 3; k++ {
				f, err := strconv.ParseFloat(fields[k+1], 64)
				if err != nil {
					return nil, 0, fmt.Errorf("line %d: bad vertex coordinate %q", i+1, fields[k+1])
				}
				pos[k] = f
			}
			o.verts = append(o.verts, objVertex{
				pos:    pos,
				line:   i,
				rest:   strings.Join(fields[4:], " "),
				merged: -1,
			})
		case strings.HasPrefix(trimmed, "f "):
			fields := strings.Fields(trimmed)[1:]
			if len(fields) < 3 {
				return nil, 0, fmt.Errorf("line %d: face with fewer than 3 corners", i+1)
			}
			face := objFace{line: i}
			for _, tok := range fields {
				vPart, rest, _ := strings.Cut(tok, "/")
				idx, err := strconv.Atoi(vPart)
				if err != nil {
					return nil, 0, fmt.Errorf("line %d: bad face index %q", i+1, tok)
				}
				if idx < 0 {
					idx = len(o.verts) + 1 + idx // relative indexing
				}
				if idx < 1 {
					return nil, 0, fmt.Errorf("line %d: face index %q out of range", i+1, tok)
				}
				c := objCorner{v: idx - 1}
				if rest != "" {
					c.rest = "/" + rest
				}
				face.corners = append(face.corners, c)
			}
			o.faces = append(o.faces, face)
		}
	}

	// Forward references can only be checked once all vertices are known.
	for _, f := range o.faces {
		for _, c := range f.corners {
			if c.v >= len(o.verts) {
				return nil, 0, fmt.Errorf("line %d: face references vertex %d of %d", f.line+1, c.v+1, len(o.verts))
			}
		}
	}
	return o, repaired, nil
}

// render emits the repaired OBJ. remap maps old vertex indices to surviving,
// renumbered ones; nil means identity.
func (o *objFile) render(remap []int) string {
	skipLine := make(map[int]bool)
	vertLine := make(map[int]*objVertex, len(o.verts))
	for i := range o.verts {
		v := &o.verts[i]
		if v.merged >= 0 {
			skipLine[v.line] = true
			continue
		}
		vertLine[v.line] = v
	}
	faceLine := make(map[int]*objFace, len(o.faces))
	for i := range o.faces {
		f := &o.faces[i]
		if f.dropped {
			skipLine[f.line] = true
			continue
		}
		faceLine[f.line] = f
	}

	out := make([]string, 0, len(o.lines))
	for i, line := range o.lines {
		if skipLine[i] {
			continue
		}
		if v, ok := vertLine[i]; ok && v.rewrite {
			s := fmt.Sprintf("v %.8f %.8f %.8f", v.pos.X(), v.pos.Y(), v.pos.Z())
			if v.rest != "" {
				s += " " + v.rest
			}
			out = append(out, s)
			continue
		}
		if f, ok := faceLine[i]; ok && (f.rewrite || remap != nil) {
			var b strings.Builder
			b.WriteString("f")
			for _, c := range f.corners {
				idx := c.v
				if remap != nil {
					idx = remap[idx]
				}
				fmt.Fprintf(&b, " %d%s", idx+1, c.rest)
			}
			out = append(out, b.String())
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
