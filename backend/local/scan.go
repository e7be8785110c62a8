package local

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
)

// ObjectRoots walks dir for object declaration files, returning the paths of
// the directories holding them, relative to the backend root and sorted. The
// walk uses godirwalk and does not descend into object directories.
func (fsys *FS) ObjectRoots(ctx context.Context, dir string) ([]string, error) {
	base := fsys.osPath(dir)
	var roots []string
	err := godirwalk.Walk(base, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if de.IsDir() || !strings.HasPrefix(de.Name(), "0=ocfl_object_") {
				return nil
			}
			objDir, err := filepath.Rel(fsys.path, filepath.Dir(osPathname))
			if err != nil {
				return err
			}
			roots = append(roots, filepath.ToSlash(objDir))
			return filepath.SkipDir
		},
		Unsorted: false,
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(roots)
	return roots, nil
}
