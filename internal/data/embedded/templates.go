// Package embedded provides the starter Lua modules compiled into the binary.
// They seed an empty module store through the init command.
package embedded

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
)

// TemplatesFS contains all embedded module templates.
//
//go:embed templates/*.lua
var TemplatesFS embed.FS

const templateExt = ".lua"

// Template returns the source of the named template. The name may be given
// with or without the .lua extension.
func Template(name string) ([]byte, error) {
	name = strings.TrimSuffix(name, templateExt)
	content, err := TemplatesFS.ReadFile(path.Join("templates", name+templateExt))
	if err != nil {
		return nil, fmt.Errorf("template not found: %s", name)
	}
	return content, nil
}

// ListTemplates returns the template names without extension, sorted.
func ListTemplates() ([]string, error) {
	entries, err := TemplatesFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read templates directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), templateExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), templateExt))
	}
	sort.Strings(names)
	return names, nil
}
