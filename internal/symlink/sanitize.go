package symlink

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrPathTraversal is returned when a generated destination path would
// escape its configured library root.
var ErrPathTraversal = errors.New("symlink: path escapes library root")

var illegalChars = regexp.MustCompile(`[<>:"/\\|?*\x00]`)
var multiSpace = regexp.MustCompile(`\s+`)
var multiDot = regexp.MustCompile(`\.{2,}`)

// SanitizeFilename removes or replaces characters that are unsafe for
// filenames, including path separators, so a malicious or malformed title
// can never be used to escape the generated path's directory segment.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\x00", "")
	name = strings.ReplaceAll(name, "/", " ")
	name = strings.ReplaceAll(name, "\\", " ")
	name = illegalChars.ReplaceAllString(name, " ")
	name = multiDot.ReplaceAllString(name, ".")
	name = multiSpace.ReplaceAllString(name, " ")
	name = strings.Trim(name, " .")
	return name
}

// ValidatePath ensures path is within expectedRoot, returning
// ErrPathTraversal if it would escape it once cleaned.
func ValidatePath(path, expectedRoot string) error {
	cleanPath := filepath.Clean(path)
	cleanRoot := filepath.Clean(expectedRoot)

	if !strings.HasSuffix(cleanRoot, string(filepath.Separator)) {
		cleanRoot += string(filepath.Separator)
	}

	if cleanPath != filepath.Clean(expectedRoot) && !strings.HasPrefix(cleanPath, cleanRoot) {
		return ErrPathTraversal
	}
	return nil
}
