package uploads

import (
	"net/http"
	"os"
)

// imageFS hides directories so the upload folder cannot be listed.
type imageFS struct {
	root http.FileSystem
}

func (fs imageFS) Open(name string) (http.File, error) {
	f, err := fs.root.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}

// FileServer serves stored images below PublicPrefix. Directory paths
// answer 404.
func FileServer(dir string) http.Handler {
	return http.StripPrefix(PublicPrefix, http.FileServer(imageFS{root: http.Dir(dir)}))
}
