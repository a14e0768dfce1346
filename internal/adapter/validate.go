package adapter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ValidateFiles partitions files into deployable and rejected sets. A file
// is rejected when its extension falls outside the allow-list (an empty
// allow-list accepts everything) or when a known structured format fails to
// parse.
func ValidateFiles(files []string, allowedExtensions []string) ValidationResult {
	var result ValidationResult

	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file))

		if len(allowedExtensions) > 0 && !extensionAllowed(ext, allowedExtensions) {
			result.Invalid = append(result.Invalid, InvalidFile{
				Path:   file,
				Reason: fmt.Sprintf("extension %q is not allowed", ext),
			})
			continue
		}

		if reason := checkWellFormed(file, ext); reason != "" {
			result.Invalid = append(result.Invalid, InvalidFile{Path: file, Reason: reason})
			continue
		}

		result.Valid = append(result.Valid, file)
	}
	return result
}

func extensionAllowed(ext string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(a, ext) {
			return true
		}
	}
	return false
}

// checkWellFormed parses structured formats we understand and returns a
// rejection reason, or empty when the file is acceptable. Unreadable files
// are rejected so deploy never trips over them later.
func checkWellFormed(path, ext string) string {
	switch ext {
	case ".json", ".yaml", ".yml", ".toml":
	default:
		return ""
	}

	// #nosec G304 - path comes from the managed repository mirror
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("unreadable source file: %v", err)
	}

	switch ext {
	case ".json":
		if !json.Valid(data) {
			return "malformed JSON"
		}
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Sprintf("malformed YAML: %v", err)
		}
	case ".toml":
		var doc any
		if err := toml.Unmarshal(data, &doc); err != nil {
			return fmt.Sprintf("malformed TOML: %v", err)
		}
	}
	return ""
}
