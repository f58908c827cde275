// Package schemas embeds the published JSON schemas for rule documents.
package schemas

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"golang.org/x/mod/semver"
)

//go:embed rules
var files embed.FS

const (
	// CurrentAlias names the alias directory that tracks the latest version
	CurrentAlias = "current"
	// LegacyAliasPath is the pre-versioning file name, kept for old links
	LegacyAliasPath = "rules/conversion-rules.schema.json"
)

// FS exposes the embedded schema tree rooted at rules/
func FS() fs.FS {
	return files
}

// Versions lists the published versions, oldest first, without the "v"
func Versions() []string {
	entries, err := files.ReadDir("rules")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && semver.IsValid(e.Name()) {
			out = append(out, e.Name())
		}
	}
	semver.Sort(out)
	for i, v := range out {
		out[i] = strings.TrimPrefix(v, "v")
	}
	return out
}

// Latest returns the newest published version
func Latest() string {
	versions := Versions()
	if len(versions) == 0 {
		return ""
	}
	return versions[len(versions)-1]
}

// Path returns the embedded path of a version's schema. "current" and ""
// resolve to the alias directory.
func Path(version string) string {
	v := strings.TrimSpace(version)
	if v == "" || v == CurrentAlias {
		return "rules/" + CurrentAlias + "/schema.json"
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return "rules/" + v + "/schema.json"
}

// Read returns the schema text for version
func Read(version string) ([]byte, error) {
	data, err := files.ReadFile(Path(version))
	if err != nil {
		return nil, fmt.Errorf("no schema for version %q (published: %s)", version, strings.Join(Versions(), ", "))
	}
	return data, nil
}
