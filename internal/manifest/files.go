package manifest

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// File is one entry of a user's file selection. Path is the path relative to
// the picked directory's parent, so it starts with the directory name, the
// way browser directory pickers report it.
type File interface {
	Name() string
	Path() string
	Size() int64
	Open() (io.ReadCloser, error)
}

var manifestNameRe = regexp.MustCompile(`(?i)(^|/)manifest\.csv$`)

// FindManifest picks the manifest from a selection: a file named manifest.csv
// at any depth, otherwise the first .csv file.
func FindManifest(files []File) (File, bool) {
	for _, f := range files {
		if manifestNameRe.MatchString(f.Path()) {
			return f, true
		}
	}
	for _, f := range files {
		if strings.HasSuffix(strings.ToLower(f.Name()), ".csv") {
			return f, true
		}
	}
	return nil, false
}

var topFolderRe = regexp.MustCompile(`^[^/\\]+[/\\]`)

// StripTopFolder drops the first path segment of a selection path.
func StripTopFolder(rel string) string {
	return topFolderRe.ReplaceAllString(rel, "")
}

// FileIndex resolves manifest filenames against a selection, first by path
// below the picked directory and then by bare file name. Later files win on
// collisions. It is read-only once built.
type FileIndex struct {
	byPath map[string]File
	byName map[string]File
}

func NewFileIndex(files []File) *FileIndex {
	ix := &FileIndex{
		byPath: make(map[string]File, len(files)),
		byName: make(map[string]File, len(files)),
	}
	for _, f := range files {
		ix.byPath[StripTopFolder(f.Path())] = f
		ix.byName[f.Name()] = f
	}
	return ix
}

func (ix *FileIndex) Resolve(filename string) (File, bool) {
	if f, ok := ix.byPath[filename]; ok {
		return f, true
	}
	f, ok := ix.byName[path.Base(filename)]
	return f, ok
}

func (ix *FileIndex) Len() int {
	return len(ix.byPath)
}

// BytesFile is an in-memory File.
type BytesFile struct {
	RelPath string
	Data    []byte
}

func NewBytesFile(relPath string, data []byte) *BytesFile {
	return &BytesFile{RelPath: relPath, Data: data}
}

func (f *BytesFile) Name() string { return path.Base(filepath.ToSlash(f.RelPath)) }
func (f *BytesFile) Path() string { return f.RelPath }
func (f *BytesFile) Size() int64  { return int64(len(f.Data)) }

func (f *BytesFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}

type diskFile struct {
	abs  string
	rel  string
	size int64
}

func (f *diskFile) Name() string                 { return path.Base(f.rel) }
func (f *diskFile) Path() string                 { return f.rel }
func (f *diskFile) Size() int64                  { return f.size }
func (f *diskFile) Open() (io.ReadCloser, error) { return os.Open(f.abs) }

// DirFiles lists every regular file below root as a selection. Paths use
// forward slashes and start with root's base name.
func DirFiles(root string) ([]File, error) {
	root = filepath.Clean(root)
	top := filepath.Base(root)

	var files []File
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, &diskFile{
			abs:  p,
			rel:  top + "/" + filepath.ToSlash(rel),
			size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
