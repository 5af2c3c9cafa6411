package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateName validates a user-supplied identifier (tool, machine, or
// output name) for safety and correctness.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path traversal sequences (.., //, etc.)
//   - No null bytes
//   - Maximum length of 256 characters
//
// Scheme-specific validation (tool references, stage operations) is done
// separately by the dedicated validators below.
func ValidateName(name string) error {
	if name == "" {
		return New(KindConfig, "name cannot be empty")
	}

	if len(name) > 256 {
		return New(KindConfig, "name too long (max 256 characters)")
	}

	// Check for control characters and null bytes
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(KindConfig, "name contains invalid control characters")
		}
	}

	// Check for path traversal patterns
	dangerousPatterns := []string{
		"..",   // Parent directory
		"//",   // Double slash
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(KindConfig, "name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidateOutputFilename validates an output filename from a job file.
// It ensures the filename is a simple basename without path components.
func ValidateOutputFilename(filename string) error {
	if filename == "" {
		return New(KindConfig, "output filename cannot be empty")
	}

	// Must be a simple filename, not a path
	if strings.ContainsAny(filename, "/\\") {
		return New(KindConfig, "output filename cannot contain path separators")
	}

	// No hidden files (starting with .)
	if strings.HasPrefix(filename, ".") {
		return New(KindConfig, "output filename cannot be a hidden file")
	}

	return nil
}

// ValidatePath validates an artwork file path from a job file for safety.
// It prevents path traversal outside the job directory and ensures
// reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative to the job file)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(KindConfig, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(KindConfig, "path too long (max %d characters)", maxPathLength)
	}

	// Check for null bytes and control characters
	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(KindConfig, "path contains invalid characters")
		}
	}

	// Must not be absolute path
	if strings.HasPrefix(path, "/") {
		return New(KindConfig, "path must be relative (cannot start with /)")
	}

	// Check for path traversal
	if strings.Contains(path, "..") {
		return New(KindConfig, "path cannot contain path traversal sequences (..)")
	}

	// No backslashes (potential Windows path injection)
	if strings.Contains(path, "\\") {
		return New(KindConfig, "path cannot contain backslashes")
	}

	return nil
}

// toolRefRegex matches valid tool references: a tool name, optionally
// followed by a slash and a bit name ("laser", "spindle/0.5mm-endmill").
var toolRefRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*(/[a-zA-Z0-9][a-zA-Z0-9._-]*)?$`)

// ValidateToolRef validates a tool reference from a job file.
// Laser tools are referenced by name alone; spindle tools require a bit
// selector ("spindle/1mm-endmill") which is resolved against the machine.
func ValidateToolRef(ref string) error {
	if err := ValidateName(ref); err != nil {
		return err
	}

	if !toolRefRegex.MatchString(ref) {
		return New(KindConfig, "invalid tool reference: %q", ref)
	}

	return nil
}

// stageOperations enumerates the stage operations a job file may request.
var stageOperations = map[string]bool{
	"engrave": true,
	"cut":     true,
	"drill":   true,
}

// ValidateStageOperation validates a stage operation name.
func ValidateStageOperation(op string) error {
	if err := ValidateName(op); err != nil {
		return err
	}

	if !stageOperations[strings.ToLower(op)] {
		return New(KindConfig, "unknown stage operation: %q (expected engrave, cut, or drill)", op)
	}

	return nil
}

// machineNameRegex matches valid machine profile names.
var machineNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._ -]*$`)

// ValidateMachineName validates a machine profile name from config.
func ValidateMachineName(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	if !machineNameRegex.MatchString(name) {
		return New(KindConfig, "invalid machine name: %q", name)
	}

	return nil
}
