// Package fs discovers input files for ingestion.
package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultIncludes matches labeled and raw inputs when a directory is given.
var DefaultIncludes = []string{"**/*.jsonl", "**/*.txt"}

type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = DefaultIncludes
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}

// Walk returns files under root matching the include patterns, sorted by path.
func (w *Walker) Walk(root string) ([]FileInfo, error) {
	var files []FileInfo

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if relPath != "." && w.shouldExclude(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if w.shouldInclude(relPath) && !w.shouldExclude(relPath) {
			files = append(files, fileInfo(path, info))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortFiles(files)
	return files, nil
}

// Expand resolves arguments that may be files, directories or glob patterns.
// Duplicates are removed and order follows the arguments.
func (w *Walker) Expand(args []string) ([]FileInfo, error) {
	var out []FileInfo
	seen := make(map[string]bool)
	add := func(fi FileInfo) {
		if !seen[fi.Path] {
			seen[fi.Path] = true
			out = append(out, fi)
		}
	}

	for _, arg := range args {
		if info, err := os.Stat(arg); err == nil {
			if info.IsDir() {
				files, err := w.Walk(arg)
				if err != nil {
					return nil, err
				}
				for _, f := range files {
					add(f)
				}
				continue
			}
			abs, err := filepath.Abs(arg)
			if err != nil {
				return nil, err
			}
			add(fileInfo(abs, info))
			continue
		}

		matches, err := doublestar.FilepathGlob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no input matches %q", arg)
		}
		var files []FileInfo
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			abs, err := filepath.Abs(m)
			if err != nil {
				return nil, err
			}
			if !w.shouldExclude(filepath.ToSlash(m)) {
				files = append(files, fileInfo(abs, info))
			}
		}
		sortFiles(files)
		for _, f := range files {
			add(f)
		}
	}
	return out, nil
}

// Glob returns files in dir whose names match pattern, newest first.
func Glob(dir, pattern string) ([]FileInfo, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), pattern)
	if err != nil {
		return nil, err
	}

	files := make([]FileInfo, 0, len(matches))
	for _, m := range matches {
		path := filepath.Join(dir, filepath.FromSlash(m))
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, fileInfo(path, info))
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].ModTime != files[j].ModTime {
			return files[i].ModTime > files[j].ModTime
		}
		return files[i].Path < files[j].Path
	})
	return files, nil
}

func fileInfo(path string, info os.FileInfo) FileInfo {
	return FileInfo{
		Path:    path,
		ModTime: info.ModTime().UnixNano(),
		Size:    info.Size(),
	}
}

func sortFiles(files []FileInfo) {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
}

func (w *Walker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}
