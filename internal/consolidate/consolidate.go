// Package consolidate merges dependency declarations from requirements-style
// files into the project's TOML manifest.
package consolidate

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/fieldline/sweeper/internal/domain"
	"github.com/fieldline/sweeper/pkg/log"
)

// Dependency is one parsed requirement.
type Dependency struct {
	// Name including extras, e.g. "requests[security]".
	Name string

	// VersionSpec such as ">=2.0.0" or "==1.2.3"; empty when unpinned.
	VersionSpec string

	// SourceFile is the requirements file the dependency came from.
	SourceFile string

	// Group is the target dependency group derived from the file name.
	Group string
}

// requirementPattern matches "name", "name[extras]", and trailing version
// constraints. Environment markers after ';' are stripped beforehand.
var requirementPattern = regexp.MustCompile(`^([a-zA-Z0-9_.-]+)(\[[\w,]+\])?(.*)$`)

// Merger implements ports.Consolidator against a TOML manifest with a
// [project] table holding dependencies and optional-dependencies, mirroring
// the layout requirements files are usually folded into.
type Merger struct {
	manifestPath string
	logger       log.Logger
}

// NewMerger creates a Merger targeting the given manifest file.
func NewMerger(manifestPath string, logger log.Logger) *Merger {
	return &Merger{manifestPath: manifestPath, logger: logger}
}

// Consolidate parses each requirements file and merges the dependencies into
// the manifest. Sources that cannot be parsed are reported but do not stop
// the merge. The manifest is rewritten atomically.
func (m *Merger) Consolidate(ctx context.Context, files []domain.FileInfo) (domain.ConsolidationResult, error) {
	var deps []Dependency
	var errs []string

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return domain.ConsolidationResult{}, err
		}
		parsed, err := ParseRequirementsFile(f.Path)
		if err != nil {
			if os.IsNotExist(err) {
				m.logger.Warn("requirements file missing, skipping", log.String("path", f.Path))
				continue
			}
			errs = append(errs, fmt.Sprintf("parse %s: %v", f.Path, err))
			continue
		}
		m.logger.Debug("parsed requirements file",
			log.String("path", f.Path),
			log.Int("dependencies", len(parsed)))
		deps = append(deps, parsed...)
	}

	if len(deps) == 0 {
		return domain.ConsolidationResult{Success: true, Errors: errs}, nil
	}

	result, err := m.merge(deps)
	if err != nil {
		result.Errors = append(append(result.Errors, errs...), err.Error())
		result.Success = false
		return result, nil
	}
	result.Errors = append(result.Errors, errs...)
	return result, nil
}

// ParseRequirementsFile extracts dependencies from one requirements file.
// Comments, blank lines, include directives (-r/-c), editable installs and
// URL requirements are skipped.
func ParseRequirementsFile(path string) ([]Dependency, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	group := targetGroup(filepath.Base(path))
	var deps []Dependency

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" || strings.HasPrefix(line, "-") || strings.Contains(line, "://") {
			continue
		}

		match := requirementPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		deps = append(deps, Dependency{
			Name:        match[1] + match[2],
			VersionSpec: strings.TrimSpace(match[3]),
			SourceFile:  path,
			Group:       group,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return deps, nil
}

// targetGroup maps a requirements file name to a dependency group.
func targetGroup(filename string) string {
	name := strings.ToLower(filename)
	switch {
	case strings.Contains(name, "tools"):
		return "tools"
	case strings.Contains(name, "dev"), strings.Contains(name, "test"):
		return "dev"
	default:
		return "main"
	}
}

func (m *Merger) merge(deps []Dependency) (domain.ConsolidationResult, error) {
	data, err := os.ReadFile(m.manifestPath)
	if err != nil {
		return domain.ConsolidationResult{}, fmt.Errorf("read manifest: %w", err)
	}

	var doc map[string]interface{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return domain.ConsolidationResult{}, fmt.Errorf("parse manifest: %w", err)
	}

	project := tableOf(doc, "project")
	var result domain.ConsolidationResult

	for _, dep := range deps {
		var list []string
		var store func([]string)

		if dep.Group == "main" {
			list = stringSlice(project["dependencies"])
			store = func(s []string) { project["dependencies"] = s }
		} else {
			optional := tableOf(project, "optional-dependencies")
			group := dep.Group
			list = stringSlice(optional[group])
			store = func(s []string) { optional[group] = s }
		}

		formatted := dep.Name + dep.VersionSpec
		switch conflictsWith(dep, list) {
		case conflictVersion:
			result.Conflicts = append(result.Conflicts,
				fmt.Sprintf("%s: %q conflicts with existing pin", dep.Name, formatted))
		case conflictDuplicate:
			result.DuplicatesFound++
		default:
			store(append(list, formatted))
			result.Merged++
		}
	}

	doc["project"] = project

	out, err := toml.Marshal(doc)
	if err != nil {
		return result, fmt.Errorf("encode manifest: %w", err)
	}
	tmp := m.manifestPath + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return result, fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, m.manifestPath); err != nil {
		return result, fmt.Errorf("write manifest: %w", err)
	}

	result.Success = true
	m.logger.Info("merged dependencies into manifest",
		log.String("manifest", m.manifestPath),
		log.Int("merged", result.Merged),
		log.Int("duplicates", result.DuplicatesFound),
		log.Int("conflicts", len(result.Conflicts)))
	return result, nil
}

type conflictKind int

const (
	conflictNone conflictKind = iota
	conflictDuplicate
	conflictVersion
)

// conflictsWith reports whether dep already appears in the list: an exact
// match is a duplicate, a same-name entry with a different constraint is a
// version conflict.
func conflictsWith(dep Dependency, existing []string) conflictKind {
	bare := strings.SplitN(dep.Name, "[", 2)[0]
	formatted := dep.Name + dep.VersionSpec

	for _, e := range existing {
		if e == formatted {
			return conflictDuplicate
		}
		existingName := requirementPattern.FindStringSubmatch(e)
		if existingName != nil && strings.EqualFold(existingName[1], bare) {
			return conflictVersion
		}
	}
	return conflictNone
}

// tableOf returns the sub-table at key, creating it when absent. go-toml
// decodes tables as map[string]interface{}.
func tableOf(m map[string]interface{}, key string) map[string]interface{} {
	if t, ok := m[key].(map[string]interface{}); ok {
		return t
	}
	t := map[string]interface{}{}
	m[key] = t
	return t
}

// stringSlice coerces a decoded TOML array into []string.
func stringSlice(v interface{}) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
