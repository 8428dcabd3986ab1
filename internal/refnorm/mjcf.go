package refnorm

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// mjcfRefPattern matches mesh asset references in physics XML (file="...").
var mjcfRefPattern = regexp.MustCompile(`file="([^"]+)"`)

// FixMJCFPaths rewrites absolute mesh references in a physics XML file to the
// relative "objs/NAME" form the scene converter expects. The converter that
// produced the file embeds the authoring machine's absolute paths; the first
// absolute reference containing an "objs" component determines the prefix,
// and every reference sharing it is made relative. Returns how many
// references were rewritten.
func FixMJCFPaths(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read physics xml: %w", err)
	}
	text := string(data)

	var prefix string
	for _, m := range mjcfRefPattern.FindAllStringSubmatch(text, -1) {
		ref := m[1]
		if !strings.HasPrefix(ref, "/") && !filepath.IsAbs(filepath.FromSlash(ref)) {
			continue
		}
		if idx := strings.Index(ref, "objs/"); idx > 0 {
			prefix = ref[:idx]
			break
		}
	}
	if prefix == "" {
		return 0, nil
	}

	count := strings.Count(text, `file="`+prefix)
	text = strings.ReplaceAll(text, `file="`+prefix, `file="`)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return 0, fmt.Errorf("rewrite physics xml: %w", err)
	}
	return count, nil
}
