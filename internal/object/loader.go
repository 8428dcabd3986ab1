package object

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// descriptionNames are the filenames probed, in order, when a directory is
// given instead of a file.
var descriptionNames = []string{"object.yaml", "object.yml", "object.json"}

// FindDescription locates the object description file inside dir.
func FindDescription(dir string) (string, error) {
	for _, name := range descriptionNames {
		path := filepath.Join(dir, name)
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("no object description (object.yaml/object.json) in %s", dir)
}

// LoadFromPath reads a description file (YAML or JSON) and returns the parsed
// Description. Format is detected by extension (.yaml/.yml → YAML, .json →
// JSON) or by content (first non-whitespace char).
func LoadFromPath(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read object description: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses a description from bytes. ext is the file extension for format
// hint; empty = detect from content.
func Load(data []byte, ext string) (*Description, error) {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}

	var (
		d   Description
		err error
	)
	switch {
	case ext == ".yaml":
		err = yaml.Unmarshal(data, &d)
	case ext == ".json":
		err = json.Unmarshal(data, &d)
	case strings.HasPrefix(strings.TrimSpace(string(data)), "{"):
		err = json.Unmarshal(data, &d)
	default:
		err = yaml.Unmarshal(data, &d)
	}
	if err != nil {
		return nil, fmt.Errorf("parse object description: %w", err)
	}

	if err := d.checkFields(); err != nil {
		return nil, err
	}
	return &d, nil
}

// checkFields rejects descriptions with missing required fields. Structural
// problems (duplicate ids, cycles, ...) are kintree's job; this only catches
// records that cannot even be indexed.
func (d *Description) checkFields() error {
	if len(d.Links) == 0 {
		return fmt.Errorf("object description declares no links")
	}
	for i, l := range d.Links {
		if l.ID == "" {
			return fmt.Errorf("link %d has no id", i)
		}
	}
	for i, j := range d.Joints {
		if j.ID == "" {
			return fmt.Errorf("joint %d has no id", i)
		}
		if !j.Type.Known() {
			return fmt.Errorf("joint %q has unknown type %q", j.ID, j.Type)
		}
		if j.Parent == "" || j.Child == "" {
			return fmt.Errorf("joint %q is missing parent or child link id", j.ID)
		}
	}
	return nil
}
