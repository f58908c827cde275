package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/reshape/internal/bundle"
	"github.com/conduit-lang/reshape/internal/cli/config"
	"github.com/conduit-lang/reshape/internal/cli/ui"
	"github.com/conduit-lang/reshape/internal/evaluator"
	"github.com/conduit-lang/reshape/internal/format"
	"github.com/conduit-lang/reshape/pkg/reshape"
)

// stdinPath reads from the command's input stream
const stdinPath = "-"

// loadRules bundles the rules file at path, resolving includes
func (s *session) loadRules(path string) (map[string]any, error) {
	doc, err := bundle.Bundle(path, bundle.Options{Logger: s.log})
	if err != nil {
		return nil, fmt.Errorf("%s", ui.RulesFileError(path, err, noColor))
	}
	return doc, nil
}

// readInput reads a payload file, or stdin when path is empty or "-"
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == stdinPath {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}

// openInput opens a payload stream, or stdin when path is empty or "-"
func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "" || path == stdinPath {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// writeOutput writes text to path, or to stdout when path is empty or "-".
// A trailing newline is added when missing.
func writeOutput(cmd *cobra.Command, path, text string) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if path == "" || path == stdinPath {
		_, err := io.WriteString(cmd.OutOrStdout(), text)
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// writeJSON renders a typed result as indented JSON on stdout
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

// resolvePolicy picks the collision policy from the flag, falling back to
// the configured one
func (s *session) resolvePolicy(flag string) (evaluator.CollisionPolicy, error) {
	if flag == "" {
		flag = s.cfg.CollisionPolicy
	}
	policy, err := evaluator.ParseCollisionPolicy(flag)
	if err != nil {
		allowed := []string{string(evaluator.LastWriteWins), string(evaluator.FirstWriteWins), string(evaluator.ErrorOnCollision)}
		return "", fmt.Errorf("%s", ui.UnknownValueError("collision policy", flag, allowed, "convert", noColor))
	}
	return policy, nil
}

// options builds the public evaluation options for one command run
func (s *session) options(policyFlag string, trace bool) (*reshape.Options, error) {
	policy, err := s.resolvePolicy(policyFlag)
	if err != nil {
		return nil, err
	}
	return &reshape.Options{
		CollisionPolicy: policy,
		Trace:           trace || s.cfg.Trace,
		Pretty:          s.cfg.Format.Pretty,
		Logger:          s.log,
	}, nil
}

// isRulesFile reports whether path has a rule document extension. The CLI's
// own config files never count.
func isRulesFile(path string) bool {
	base := filepath.Base(path)
	if strings.TrimSuffix(base, filepath.Ext(base)) == config.FileName || base == format.ConfigFileName {
		return false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// findRulesFiles expands files, directories and globs into rule documents
// under the working directory
func findRulesFiles(patterns []string) ([]string, error) {
	var files []string

	// Get current working directory as base
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	for _, pattern := range patterns {
		absPattern, err := filepath.Abs(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid path %s: %w", pattern, err)
		}

		// Validate path is within or equal to cwd
		relPath, err := filepath.Rel(cwd, absPattern)
		if err != nil || strings.HasPrefix(relPath, "..") {
			return nil, fmt.Errorf("path %s is outside working directory", pattern)
		}

		info, err := os.Stat(absPattern)
		if err == nil && info.IsDir() {
			err := filepath.Walk(absPattern, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}

				// Skip hidden directories and dependency trees
				if info.IsDir() && path != absPattern && (strings.HasPrefix(info.Name(), ".") || info.Name() == "node_modules" || info.Name() == "vendor") {
					return filepath.SkipDir
				}

				if !info.IsDir() && isRulesFile(path) && !strings.HasPrefix(info.Name(), ".") {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			continue
		}

		matches, err := filepath.Glob(absPattern)
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			relMatch, err := filepath.Rel(cwd, match)
			if err != nil || strings.HasPrefix(relMatch, "..") {
				continue
			}
			if isRulesFile(match) {
				files = append(files, match)
			}
		}
	}

	// Remove duplicates
	seen := make(map[string]bool)
	unique := []string{}
	for _, file := range files {
		if !seen[file] {
			seen[file] = true
			unique = append(unique, file)
		}
	}
	return unique, nil
}

// displayPath shortens path relative to the working directory
func displayPath(path string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(cwd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
