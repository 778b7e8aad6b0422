package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
)

var (
	sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
)

// ValidateDir validates migration filenames and goose headers for every
// dialect under dir, and checks that each dialect ships the same versions.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS runs ValidateDir's checks against an fs rooted at the
// migrations directory.
func ValidateFS(fsys fs.FS) error {
	versionsByDialect := map[string][]string{}

	for _, dialect := range Dialects {
		entries, err := fs.ReadDir(fsys, dialect)
		if err != nil {
			return fmt.Errorf("read dir %q: %w", dialect, err)
		}

		seen := map[string]string{} // version -> filename
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
				continue
			}
			name := e.Name()

			m := sqlFileRe.FindStringSubmatch(name)
			if m == nil {
				return fmt.Errorf("invalid migration filename %s/%s (expected YYYYMMDDHHMMSS_name.sql)", dialect, name)
			}

			version := m[1]
			if prev, ok := seen[version]; ok {
				return fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, name)
			}
			seen[version] = name

			b, err := fs.ReadFile(fsys, path.Join(dialect, name))
			if err != nil {
				return fmt.Errorf("read file %s/%s: %w", dialect, name, err)
			}
			txt := string(b)
			if !strings.Contains(txt, "-- +goose Up") {
				return fmt.Errorf("migration %s/%s missing \"-- +goose Up\"", dialect, name)
			}
			if !strings.Contains(txt, "-- +goose Down") {
				return fmt.Errorf("migration %s/%s missing \"-- +goose Down\"", dialect, name)
			}
			versionsByDialect[dialect] = append(versionsByDialect[dialect], version)
		}
		sort.Strings(versionsByDialect[dialect])
	}

	reference := versionsByDialect[Dialects[0]]
	for _, dialect := range Dialects[1:] {
		if strings.Join(versionsByDialect[dialect], ",") != strings.Join(reference, ",") {
			return fmt.Errorf("dialect %s versions %v do not match %s versions %v",
				dialect, versionsByDialect[dialect], Dialects[0], reference)
		}
	}
	return nil
}
