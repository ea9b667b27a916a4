package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// readmeLineRegex matches the README sentence linking the latest rate files
var readmeLineRegex = regexp.MustCompile(
	`This repository contains the daily IBKR Canada interest and margin rates,.*`,
)

// UpdateReadme points the README sentence at the latest interest and margin rate files.
// Missing READMEs, READMEs without the sentence and files outside the README
// directory are left alone
func UpdateReadme(readmePath, interestPath, marginPath string) error {
	content, err := os.ReadFile(readmePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("unable to read README: %w", err)
	}

	root, err := filepath.Abs(filepath.Dir(readmePath))
	if err != nil {
		return fmt.Errorf("unable to resolve README directory: %w", err)
	}

	interestRel, ok := relativeTo(root, interestPath)
	if !ok {
		return nil
	}

	marginRel, ok := relativeTo(root, marginPath)
	if !ok {
		return nil
	}

	line := fmt.Sprintf(
		"This repository contains the daily IBKR Canada interest and margin rates, "+
			"with the latest snapshots available in [`%s`](%s) and [`%s`](%s).",
		interestRel, interestRel,
		marginRel, marginRel,
	)

	loc := readmeLineRegex.FindIndex(content)
	if loc == nil {
		return nil
	}

	updated := string(content[:loc[0]]) + line + string(content[loc[1]:])
	if updated == string(content) {
		return nil
	}

	info, err := os.Stat(readmePath)
	if err != nil {
		return fmt.Errorf("unable to stat README: %w", err)
	}

	if err := os.WriteFile(readmePath, []byte(updated), info.Mode().Perm()); err != nil {
		return fmt.Errorf("unable to write README: %w", err)
	}

	return nil
}

// relativeTo returns the slash-separated path of target relative to root,
// if target is inside root
func relativeTo(root, target string) (string, bool) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", false
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}

	return filepath.ToSlash(rel), true
}
