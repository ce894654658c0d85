// Package prompt implements {{key}} placeholder substitution for project
// prompt templates. Substitution is total: unresolved placeholders are left
// in place rather than removed or rejected, so an admin can see exactly which
// variables a submitted request failed to provide.
package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pixloom-ai/pixloom-engine/pkg/jsonutil"
)

// placeholderPattern matches non-overlapping {{...}} spans. The inner part
// excludes '}' so nested or malformed braces resolve to the shortest span.
var placeholderPattern = regexp.MustCompile(`\{\{([^}]*)\}\}`)

// Substitute replaces every {{name}} span whose trimmed inner identifier is
// present in variables. Absent identifiers leave the original span unchanged.
// An empty-string value counts as present and substitutes to "".
func Substitute(template string, variables map[string]string) string {
	if template == "" {
		return ""
	}

	return placeholderPattern.ReplaceAllStringFunc(template, func(span string) string {
		name := strings.TrimSpace(span[2 : len(span)-2])
		if value, ok := variables[name]; ok {
			return value
		}
		return span
	})
}

// ExtractVariableNames returns the unique trimmed identifiers referenced by
// template, in first-occurrence order. Empty identifiers ({{}} or {{  }})
// are not variables and are skipped.
func ExtractVariableNames(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// ValidationResult reports whether a template's variables are all supplied.
type ValidationResult struct {
	IsValid          bool     `json:"isValid"`
	MissingVariables []string `json:"missingVariables"`
}

// Validate checks that every variable the template references has a usable
// value. A variable is missing when it is absent OR its value is the empty
// string. Note this is stricter than Substitute, which treats an empty
// string as present; the two definitions are intentionally independent.
func Validate(template string, variables map[string]string) ValidationResult {
	var missing []string
	for _, name := range ExtractVariableNames(template) {
		if v, ok := variables[name]; !ok || v == "" {
			missing = append(missing, name)
		}
	}
	return ValidationResult{
		IsValid:          len(missing) == 0,
		MissingVariables: missing,
	}
}

// BuildVariables constructs the per-request variable mapping: every non-nil
// control value keyed by its control key, then positional image references as
// image1..imageN. Image keys are assigned last, so they always overwrite a
// control that happens to use an imageN key.
func BuildVariables(controlValues map[string]interface{}, images []string) map[string]string {
	vars := make(map[string]string, len(controlValues)+len(images))
	for key, value := range controlValues {
		if value == nil {
			continue
		}
		vars[key] = jsonutil.CoerceString(value)
	}
	for i, img := range images {
		vars[fmt.Sprintf("image%d", i+1)] = img
	}
	return vars
}
