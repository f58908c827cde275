// Package compat checks a rule document against a target engine version.
package compat

import (
	"strings"

	"golang.org/x/mod/semver"

	"github.com/conduit-lang/reshape/internal/diagnostics"
	"github.com/conduit-lang/reshape/internal/normalize"
	"github.com/conduit-lang/reshape/internal/payload"
)

// EngineVersion is the rule schema version this engine implements
const EngineVersion = "1.1.0"

// SchemaVersions lists every published rule schema, oldest first
var SchemaVersions = []string{"1.0.0", "1.1.0"}

// Result is the outcome of a compatibility check
type Result struct {
	IsCompatible bool             `json:"isCompatible"`
	Diagnostics  diagnostics.List `json:"diagnostics"`
}

// Check inspects the raw document; target defaults to EngineVersion
func Check(raw any, target string) *Result {
	doc, diags := normalize.Decode(raw)
	if doc == nil {
		diags = diags.WithStage(diagnostics.StageCompat)
		return &Result{IsCompatible: false, Diagnostics: diags}
	}
	diags = diagnostics.List{}

	if strings.TrimSpace(target) == "" {
		target = EngineVersion
	}
	targetSemver, targetOK := Canonical(target)
	if !targetOK {
		diags = append(diags, diagnostics.NewInvalidTargetVersion(target))
	}

	schema := ""
	if v, ok := doc["schemaVersion"]; ok && v != nil {
		schema = strings.TrimSpace(payload.Stringify(v))
	}
	switch schemaSemver, schemaOK := Canonical(schema); {
	case schema == "":
		diags = append(diags, diagnostics.NewMissingSchemaVersion(EngineVersion))
		schemaSemver, _ = Canonical(EngineVersion)
		if targetOK && semver.Compare(schemaSemver, targetSemver) > 0 {
			diags = append(diags, diagnostics.NewSchemaTooNew(EngineVersion, target))
		}
	case !schemaOK:
		diags = append(diags, diagnostics.NewInvalidSchemaVersion(schema))
	case targetOK && semver.Compare(schemaSemver, targetSemver) > 0:
		diags = append(diags, diagnostics.NewSchemaTooNew(schema, target))
	}

	for _, field := range []string{"inputFormat", "outputFormat"} {
		v, ok := doc[field]
		if !ok || v == nil {
			continue
		}
		s := payload.Stringify(v)
		if _, valid := payload.ParseFormat(s); !valid {
			diags = append(diags, diagnostics.NewUnsupportedFormat(field, s))
		}
	}

	return &Result{IsCompatible: !diags.HasErrors(), Diagnostics: diags}
}

// Canonical validates an X.Y.Z version (optional "v" prefix and
// pre-release suffix) and returns it in the "vX.Y.Z" form semver compares
func Canonical(version string) (string, bool) {
	v := strings.TrimSpace(version)
	if v == "" {
		return "", false
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) || semver.Canonical(v) != v {
		return "", false
	}
	return v, true
}
