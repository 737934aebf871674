// File: internal/uploads/store.go
package uploads

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/helmetgate/pkg/utils"
	"github.com/spf13/afero"
)

// Store writes uploaded images to a directory and serves them back
type Store struct {
	fs        afero.Fs
	dir       string
	urlPrefix string
	now       func() time.Time
	logger    *logrus.Entry
}

// SavedFile describes a stored upload
type SavedFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// NewStore creates a store rooted at dir on fs. URLs are built under urlPrefix.
func NewStore(fs afero.Fs, dir, urlPrefix string) *Store {
	return &Store{
		fs:        fs,
		dir:       dir,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		now:       time.Now,
		logger:    utils.ComponentLogger("uploads"),
	}
}

// NewOSStore creates a store on the local filesystem
func NewOSStore(dir, urlPrefix string) *Store {
	return NewStore(afero.NewOsFs(), dir, urlPrefix)
}

// Init creates the upload directory if needed
func (s *Store) Init() error {
	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return utils.NewAppError(utils.ErrCodeUpload, "Failed to create upload directory", err.Error())
	}
	return nil
}

// Save writes r under "<epoch-ms>-<base name>" and returns its public path.
// Same-millisecond uploads of the same name overwrite each other.
func (s *Store) Save(originalName string, r io.Reader) (*SavedFile, error) {
	base := SanitizeName(originalName)
	if base == "" {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "Invalid file name", originalName)
	}

	if err := s.Init(); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%d-%s", s.now().UnixMilli(), base)
	f, err := s.fs.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeUpload, "Failed to create upload file", err.Error())
	}

	size, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil {
		return nil, utils.NewAppError(utils.ErrCodeUpload, "Failed to write upload file", copyErr.Error())
	}
	if closeErr != nil {
		return nil, utils.NewAppError(utils.ErrCodeUpload, "Failed to close upload file", closeErr.Error())
	}

	saved := &SavedFile{
		Name: name,
		Path: path.Join(s.urlPrefix, name),
		Size: size,
	}

	s.logger.WithFields(logrus.Fields{
		"name": name,
		"size": size,
	}).Info("Upload stored")

	return saved, nil
}

// Handler serves stored files without directory listings; mount it with the
// URL prefix stripped
func (s *Store) Handler() http.Handler {
	files := http.FileServer(afero.NewHttpFs(afero.NewBasePathFs(s.fs, s.dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// URLPrefix returns the public path prefix of stored files
func (s *Store) URLPrefix() string {
	return s.urlPrefix
}

// SanitizeName reduces a client-supplied file name to its final path element
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(name)
	switch base {
	case ".", "..", "/":
		return ""
	}
	return strings.TrimSpace(base)
}
