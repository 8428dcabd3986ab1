// Package pipeline runs the full conversion for one object directory: load
// the description, build and validate the kinematic tree, repair the
// referenced meshes, write the URDF, normalize references, then hand the
// directory to the external converters. Stages run strictly in order; all
// local writes are finished before a converter reads the directory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"articulate/internal/kintree"
	"articulate/internal/logging"
	"articulate/internal/meshrepair"
	"articulate/internal/object"
	"articulate/internal/refnorm"
	"articulate/internal/urdf"
)

// DefaultConverterTimeout bounds one external converter invocation.
const DefaultConverterTimeout = 60 * time.Second

// Options configures one conversion run. Zero value: repair with default
// thresholds, radian limits, no converters.
type Options struct {
	Repair       meshrepair.Config
	DegreeLimits bool

	// ToMJCF and ToScene are the external converter command lines. Each is
	// invoked as argv + input path + output path. Empty means skip.
	ToMJCF  []string
	ToScene []string

	// ConverterTimeout bounds each converter invocation; zero means
	// DefaultConverterTimeout.
	ConverterTimeout time.Duration
}

// Result is what one object's conversion produced.
type Result struct {
	Object string
	Dir    string

	Tree      *kintree.Tree
	URDFPath  string
	MJCFPath  string
	ScenePath string

	RepairReports []*meshrepair.Report
	Renames       map[string]string
	RefsRewritten int

	// Warnings are asset-level problems that did not stop the object
	// (unparseable meshes passed through unmodified).
	Warnings []string
}

// Run converts one object directory. Structural, reference and converter
// errors are returned to the caller; asset parse failures become warnings on
// the Result.
func Run(ctx context.Context, dir string, opts Options) (*Result, error) {
	log := logging.New("pipeline")

	descPath, err := object.FindDescription(dir)
	if err != nil {
		return nil, err
	}
	desc, err := object.LoadFromPath(descPath)
	if err != nil {
		return nil, err
	}

	res := &Result{Object: desc.Name, Dir: dir}
	log.Info("converting object", "name", desc.Name, "dir", dir)

	tree, err := kintree.Build(desc)
	if err != nil {
		return res, err
	}
	res.Tree = tree

	if err := repairMeshes(desc, dir, opts.Repair, res); err != nil {
		return res, err
	}

	res.URDFPath = filepath.Join(dir, urdf.SanitizeName(desc.Name)+".urdf")
	if err := urdf.WriteFile(res.URDFPath, tree, urdf.Options{DegreeLimits: opts.DegreeLimits}); err != nil {
		return res, err
	}

	remap, err := refnorm.Normalize(dir, []string{res.URDFPath})
	if err != nil {
		return res, err
	}
	res.Renames = remap.Renames()
	res.RefsRewritten = remap.RefCount()

	if err := runConverters(ctx, opts, res); err != nil {
		return res, err
	}

	log.Info("object converted", "name", desc.Name,
		"meshes", len(res.RepairReports), "renames", len(res.Renames),
		"warnings", len(res.Warnings))
	return res, nil
}

// repairMeshes runs the repair engine over every referenced mesh. A parse
// failure skips that asset and records a warning; one bad asset must not
// block its siblings.
func repairMeshes(desc *object.Description, dir string, cfg meshrepair.Config, res *Result) error {
	engine := meshrepair.NewEngine(cfg)
	for _, ref := range desc.MeshPaths() {
		path, ok := resolveMesh(ref, dir)
		if !ok {
			// Left for the normalizer, which fails the object with a proper
			// reference error if the URDF ends up pointing at nothing.
			res.Warnings = append(res.Warnings, fmt.Sprintf("mesh %s: not found, repair skipped", ref))
			continue
		}
		report, err := engine.RepairFile(path)
		if err != nil {
			var pe *meshrepair.ParseError
			if errors.As(err, &pe) {
				res.Warnings = append(res.Warnings, pe.Error())
				res.RepairReports = append(res.RepairReports, report)
				continue
			}
			return err
		}
		res.RepairReports = append(res.RepairReports, report)
	}
	return nil
}

// resolveMesh locates a referenced mesh on disk: relative to the object
// directory, or by matching the trailing components of an authoring-machine
// absolute path under it.
func resolveMesh(ref, dir string) (string, bool) {
	ref = filepath.FromSlash(ref)
	if !filepath.IsAbs(ref) {
		path := filepath.Join(dir, ref)
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return path, true
		}
		return "", false
	}
	if st, err := os.Stat(ref); err == nil && !st.IsDir() {
		return ref, true
	}
	parts := strings.Split(strings.Trim(ref, string(filepath.Separator)), string(filepath.Separator))
	for i := range parts {
		cand := filepath.Join(append([]string{dir}, parts[i:]...)...)
		if st, err := os.Stat(cand); err == nil && !st.IsDir() {
			return cand, true
		}
	}
	return "", false
}
