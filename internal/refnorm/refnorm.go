// Package refnorm normalizes asset filenames and the references that point at
// them. Downstream physics tooling resolves mesh paths relative to the
// referencing file and rejects names with characters outside [A-Za-z0-9_.],
// so every asset is renamed to a sanitized form and every embedded reference
// is rewritten to a relative path in one consistent pass.
//
// The pass is two-phase: Compute stages every rename and rewrite without
// touching the filesystem, Apply commits them. A failure during Compute
// leaves the object untouched, with its old names still valid.
package refnorm

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"articulate/internal/logging"
)

// NameCollisionError reports two distinct assets whose sanitized names map to
// the same target. Committing either rename would silently overwrite the
// other asset, so the object fails instead.
type NameCollisionError struct {
	Target  string
	Sources []string // original base names, sorted
}

func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("filename collision: %s both normalize to %q", strings.Join(e.Sources, " and "), e.Target)
}

func (e *NameCollisionError) Kind() string { return "name-collision" }

// UnresolvedReferenceError reports a mesh reference that matches no file on
// disk, neither at the referenced path nor under the object root.
type UnresolvedReferenceError struct {
	Ref  string
	File string // description file embedding the reference
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("reference %q in %s does not resolve to a file", e.Ref, filepath.Base(e.File))
}

func (e *UnresolvedReferenceError) Kind() string { return "unresolved-reference" }

// assetExts are the asset types covered by renaming. Backups (.bak) are never
// renamed.
var assetExts = map[string]bool{
	".obj": true,
	".mtl": true,
	".ply": true,
}

// SanitizeBase rewrites one path component: every byte outside the allow-list
// of letters, digits, underscore and dot becomes an underscore.
func SanitizeBase(name string) string {
	out := []byte(name)
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '.':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}

type refEdit struct {
	old string // literal reference text as it appears in the file
	new string
}

// Remap is the staged outcome of Compute: asset renames plus the per-file
// reference rewrites that keep every description consistent with them.
// Applied exhaustively or not at all.
type Remap struct {
	Root string

	// renames maps absolute old asset path to absolute new path, committed
	// in sorted order.
	renames map[string]string
	// refs holds the reference rewrites per description file.
	refs map[string][]refEdit
}

// Renames returns the staged old→new base name pairs, sorted by old name.
func (r *Remap) Renames() map[string]string {
	out := make(map[string]string, len(r.renames))
	for old, nw := range r.renames {
		out[filepath.Base(old)] = filepath.Base(nw)
	}
	return out
}

// RefCount returns how many references will be (or were) rewritten.
func (r *Remap) RefCount() int {
	n := 0
	for _, edits := range r.refs {
		n += len(edits)
	}
	return n
}

// refPattern matches mesh references in the description format
// (filename="...").
var refPattern = regexp.MustCompile(`filename="([^"]+)"`)

// Compute scans the object root for assets needing a rename and the given
// description files for mesh references, and stages the full remap. Nothing
// on disk changes. Collisions and unresolvable references fail here, before
// any rename is committed.
func Compute(root string, descFiles []string) (*Remap, error) {
	r := &Remap{
		Root:    root,
		renames: make(map[string]string),
		refs:    make(map[string][]refEdit),
	}

	if err := r.stageRenames(); err != nil {
		return nil, err
	}
	for _, df := range descFiles {
		if err := r.stageRefs(df); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// stageRenames walks the root and stages a rename for every asset whose base
// name sanitizes differently, checking each target against files already on
// disk and against the other staged renames.
func (r *Remap) stageRenames() error {
	taken := make(map[string][]string) // target path → original base names
	err := filepath.Walk(r.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasSuffix(path, ".bak") {
			return nil
		}
		if !assetExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		base := filepath.Base(path)
		clean := SanitizeBase(base)
		target := filepath.Join(filepath.Dir(path), clean)
		if clean == base {
			// Already normalized, but it can still be the victim of a rename
			// landing on its name.
			taken[target] = append(taken[target], base)
			return nil
		}
		r.renames[path] = target
		taken[target] = append(taken[target], base)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan assets: %w", err)
	}

	for target, sources := range taken {
		if len(sources) > 1 {
			sort.Strings(sources)
			return &NameCollisionError{Target: filepath.Base(target), Sources: sources}
		}
	}
	return nil
}

// stageRefs resolves every reference in one description file and stages its
// rewrite: the renamed target, re-expressed relative to the description
// file's own directory.
func (r *Remap) stageRefs(descFile string) error {
	data, err := os.ReadFile(descFile)
	if err != nil {
		return fmt.Errorf("read description: %w", err)
	}
	dir := filepath.Dir(descFile)

	seen := make(map[string]bool)
	for _, m := range refPattern.FindAllStringSubmatch(string(data), -1) {
		ref := m[1]
		if seen[ref] {
			continue
		}
		seen[ref] = true

		abs, err := r.resolve(ref, dir)
		if err != nil {
			return &UnresolvedReferenceError{Ref: ref, File: descFile}
		}
		if target, ok := r.renames[abs]; ok {
			abs = target
		}
		rel, err := filepath.Rel(dir, abs)
		if err != nil {
			return &UnresolvedReferenceError{Ref: ref, File: descFile}
		}
		rel = filepath.ToSlash(rel)
		if rel != ref {
			r.refs[descFile] = append(r.refs[descFile], refEdit{old: ref, new: rel})
		}
	}
	return nil
}

// resolve maps a reference to the absolute path of an existing file. Relative
// references resolve against the description file's directory. Absolute
// references from the authoring machine usually do not exist here, so their
// trailing components are matched under the object root ("/data/objs/x.obj"
// finds <root>/objs/x.obj).
func (r *Remap) resolve(ref, dir string) (string, error) {
	ref = filepath.FromSlash(ref)
	if !filepath.IsAbs(ref) {
		cand := filepath.Join(dir, ref)
		if fileExists(cand) {
			return cand, nil
		}
		return "", fmt.Errorf("no file at %s", cand)
	}
	if fileExists(ref) {
		return ref, nil
	}
	parts := strings.Split(strings.Trim(ref, string(filepath.Separator)), string(filepath.Separator))
	for i := range parts {
		cand := filepath.Join(append([]string{r.Root}, parts[i:]...)...)
		if fileExists(cand) {
			return cand, nil
		}
	}
	return "", fmt.Errorf("no file under %s matches %s", r.Root, ref)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Apply commits the staged remap: assets are renamed (not copied), every
// description file gets its references rewritten, and mtllib lines inside
// OBJ assets are updated to the renamed material names. Only called after
// Compute staged the whole object successfully.
func (r *Remap) Apply() error {
	log := logging.New("refnorm")

	olds := make([]string, 0, len(r.renames))
	for old := range r.renames {
		olds = append(olds, old)
	}
	sort.Strings(olds)
	for _, old := range olds {
		if err := os.Rename(old, r.renames[old]); err != nil {
			return fmt.Errorf("rename asset: %w", err)
		}
		log.Debug("asset renamed", "from", filepath.Base(old), "to", filepath.Base(r.renames[old]))
	}

	for df, edits := range r.refs {
		data, err := os.ReadFile(df)
		if err != nil {
			return fmt.Errorf("read description: %w", err)
		}
		text := string(data)
		for _, e := range edits {
			text = strings.ReplaceAll(text,
				fmt.Sprintf("filename=%q", e.old),
				fmt.Sprintf("filename=%q", e.new))
		}
		if err := os.WriteFile(df, []byte(text), 0o644); err != nil {
			return fmt.Errorf("rewrite description: %w", err)
		}
		log.Debug("references rewritten", "file", filepath.Base(df), "count", len(edits))
	}

	return r.rewriteMaterialRefs()
}

// rewriteMaterialRefs fixes mtllib lines inside OBJ assets that point at a
// renamed material file.
func (r *Remap) rewriteMaterialRefs() error {
	renamedBase := make(map[string]string)
	for old, nw := range r.renames {
		if strings.EqualFold(filepath.Ext(old), ".mtl") {
			renamedBase[filepath.Base(old)] = filepath.Base(nw)
		}
	}
	if len(renamedBase) == 0 {
		return nil
	}

	return filepath.Walk(r.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.EqualFold(filepath.Ext(path), ".obj") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read asset: %w", err)
		}
		lines := strings.Split(string(data), "\n")
		changed := false
		for i, line := range lines {
			trimmed := strings.TrimSpace(line)
			if !strings.HasPrefix(trimmed, "mtllib ") {
				continue
			}
			name := strings.TrimSpace(strings.TrimPrefix(trimmed, "mtllib "))
			if nw, ok := renamedBase[name]; ok {
				lines[i] = "mtllib " + nw
				changed = true
			}
		}
		if !changed {
			return nil
		}
		return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644)
	})
}

// Normalize is the single-call form: compute the remap for the object, then
// apply it.
func Normalize(root string, descFiles []string) (*Remap, error) {
	r, err := Compute(root, descFiles)
	if err != nil {
		return nil, err
	}
	if err := r.Apply(); err != nil {
		return nil, err
	}
	return r, nil
}
