package recipe

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/megvadulthangya/manjaro-awesome/internal/version"
)

// Metadata is the declared state of a recipe: version plus dependency lists.
type Metadata struct {
	Name        string
	Version     version.Version
	Depends     []string
	MakeDepends []string
}

var (
	pkgnameRe = regexp.MustCompile(`(?m)^pkgname\s*=\s*["']?([^"'\n\s(]+)`)
	pkgverRe  = regexp.MustCompile(`(?m)^pkgver\s*=\s*["']?([^"'\n\s]+)`)
	pkgrelRe  = regexp.MustCompile(`(?m)^pkgrel\s*=\s*["']?([^"'\n\s]+)`)
	epochRe   = regexp.MustCompile(`(?m)^epoch\s*=\s*["']?([0-9]+)`)
	dependsRe = regexp.MustCompile(`(?m)^(depends|makedepends)\s*=\s*\(([^)]*)\)`)
)

// ParsePKGBUILD extracts the declared version and dependency lists from the
// PKGBUILD in dir. Shell-computed pkgver functions are out of scope: the
// declared assignment is the contract, matching how the published filenames
// are named.
func ParsePKGBUILD(dir string) (*Metadata, error) {
	path := filepath.Join(dir, "PKGBUILD")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read PKGBUILD: %w", err)
	}
	content := string(data)

	m := &Metadata{}
	if match := pkgnameRe.FindStringSubmatch(content); match != nil {
		m.Name = match[1]
	}

	verMatch := pkgverRe.FindStringSubmatch(content)
	if verMatch == nil {
		return nil, fmt.Errorf("PKGBUILD in %s has no pkgver", dir)
	}
	m.Version.Pkgver = verMatch[1]

	m.Version.Pkgrel = 1
	if match := pkgrelRe.FindStringSubmatch(content); match != nil {
		rel, err := strconv.Atoi(match[1])
		if err != nil || rel < 1 {
			return nil, fmt.Errorf("PKGBUILD in %s has invalid pkgrel %q", dir, match[1])
		}
		m.Version.Pkgrel = rel
	}
	if match := epochRe.FindStringSubmatch(content); match != nil {
		epoch, err := strconv.Atoi(match[1])
		if err != nil {
			return nil, fmt.Errorf("PKGBUILD in %s has invalid epoch %q", dir, match[1])
		}
		m.Version.Epoch = epoch
	}

	for _, match := range dependsRe.FindAllStringSubmatch(content, -1) {
		deps := parseDependList(match[2])
		if match[1] == "depends" {
			m.Depends = append(m.Depends, deps...)
		} else {
			m.MakeDepends = append(m.MakeDepends, deps...)
		}
	}
	return m, nil
}

// parseDependList splits a bash array body into bare dependency names,
// stripping quotes and version constraints.
func parseDependList(body string) []string {
	var deps []string
	for _, field := range strings.Fields(body) {
		dep := strings.Trim(field, `"'`)
		// Strip version constraints: foo>=1.2 -> foo
		if idx := strings.IndexAny(dep, "<>="); idx >= 0 {
			dep = dep[:idx]
		}
		if dep != "" {
			deps = append(deps, dep)
		}
	}
	return deps
}

// StripDepends removes the named dependencies from the PKGBUILD in dir,
// rewriting the file in place. Used when a configured unit must not pull a
// dependency the repository itself provides.
func StripDepends(dir string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	path := filepath.Join(dir, "PKGBUILD")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read PKGBUILD: %w", err)
	}
	content := string(data)
	for _, name := range names {
		quoted := regexp.QuoteMeta(name)
		content = regexp.MustCompile(`['"]`+quoted+`['"]`).ReplaceAllString(content, "")
		content = regexp.MustCompile(`\b`+quoted+`\b`).ReplaceAllString(content, "")
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("rewrite PKGBUILD: %w", err)
	}
	return nil
}
