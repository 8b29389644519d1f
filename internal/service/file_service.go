package service

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"

	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
)

var ErrInvalidPath = errors.New("invalid path")

// FileBackend is the panel's file API.
type FileBackend interface {
	ListFiles(ctx context.Context, subscriptionID, directory string) ([]models.FileObject, error)
	FileContents(ctx context.Context, subscriptionID, file string) (string, error)
	WriteFile(ctx context.Context, subscriptionID, file, content string) error
	RenameFiles(ctx context.Context, subscriptionID, root string, files []models.RenameEntry) error
	DeleteFiles(ctx context.Context, subscriptionID, root string, files []string) error
	CreateFolder(ctx context.Context, subscriptionID, root, name string) error
	CompressFiles(ctx context.Context, subscriptionID, root string, files []string) (*models.FileObject, error)
	DecompressFile(ctx context.Context, subscriptionID, root, file string) error
	FileDownloadURL(ctx context.Context, subscriptionID, file string) (string, error)
	FileUploadURL(ctx context.Context, subscriptionID, directory string) (string, error)
}

// FileService is the file explorer. Every path is normalised to an absolute
// path inside the server root before it reaches the panel.
type FileService struct {
	backend FileBackend
}

func NewFileService(backend FileBackend) *FileService {
	return &FileService{backend: backend}
}

// NormalizePath cleans p and roots it at "/". Paths that climb above the
// root are rejected.
func NormalizePath(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if p == "" {
		return "/", nil
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", ErrInvalidPath
		}
	}
	return path.Clean("/" + p), nil
}

// normalizeName rejects names that are not a single path element.
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return "", ErrInvalidPath
	}
	return name, nil
}

// List returns a directory with folders first, then files, each by name.
func (s *FileService) List(ctx context.Context, subscriptionID, directory string) (*models.FileListResponse, error) {
	dir, err := NormalizePath(directory)
	if err != nil {
		return nil, err
	}
	files, err := s.backend.ListFiles(ctx, subscriptionID, dir)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []models.FileObject{}
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].IsFile != files[j].IsFile {
			return !files[i].IsFile
		}
		return strings.ToLower(files[i].Name) < strings.ToLower(files[j].Name)
	})
	return &models.FileListResponse{Directory: dir, Files: files}, nil
}

func (s *FileService) Contents(ctx context.Context, subscriptionID, file string) (string, error) {
	f, err := NormalizePath(file)
	if err != nil {
		return "", err
	}
	return s.backend.FileContents(ctx, subscriptionID, f)
}

func (s *FileService) Write(ctx context.Context, subscriptionID, file, content string) error {
	f, err := NormalizePath(file)
	if err != nil {
		return err
	}
	if f == "/" {
		return ErrInvalidPath
	}
	return s.backend.WriteFile(ctx, subscriptionID, f, content)
}

func (s *FileService) Rename(ctx context.Context, subscriptionID, root string, files []models.RenameEntry) error {
	r, err := NormalizePath(root)
	if err != nil {
		return err
	}
	cleaned := make([]models.RenameEntry, 0, len(files))
	for _, e := range files {
		from, err := relativeTo(e.From)
		if err != nil {
			return err
		}
		to, err := relativeTo(e.To)
		if err != nil {
			return err
		}
		cleaned = append(cleaned, models.RenameEntry{From: from, To: to})
	}
	return s.backend.RenameFiles(ctx, subscriptionID, r, cleaned)
}

func (s *FileService) Delete(ctx context.Context, subscriptionID, root string, files []string) error {
	r, names, err := normalizeSelection(root, files)
	if err != nil {
		return err
	}
	return s.backend.DeleteFiles(ctx, subscriptionID, r, names)
}

func (s *FileService) CreateFolder(ctx context.Context, subscriptionID, root, name string) error {
	r, err := NormalizePath(root)
	if err != nil {
		return err
	}
	n, err := normalizeName(name)
	if err != nil {
		return err
	}
	return s.backend.CreateFolder(ctx, subscriptionID, r, n)
}

func (s *FileService) Compress(ctx context.Context, subscriptionID, root string, files []string) (*models.FileObject, error) {
	r, names, err := normalizeSelection(root, files)
	if err != nil {
		return nil, err
	}
	return s.backend.CompressFiles(ctx, subscriptionID, r, names)
}

func (s *FileService) Decompress(ctx context.Context, subscriptionID, root, file string) error {
	r, err := NormalizePath(root)
	if err != nil {
		return err
	}
	n, err := normalizeName(file)
	if err != nil {
		return err
	}
	return s.backend.DecompressFile(ctx, subscriptionID, r, n)
}

func (s *FileService) DownloadURL(ctx context.Context, subscriptionID, file string) (string, error) {
	f, err := NormalizePath(file)
	if err != nil {
		return "", err
	}
	return s.backend.FileDownloadURL(ctx, subscriptionID, f)
}

func (s *FileService) UploadURL(ctx context.Context, subscriptionID, directory string) (string, error) {
	dir, err := NormalizePath(directory)
	if err != nil {
		return "", err
	}
	return s.backend.FileUploadURL(ctx, subscriptionID, dir)
}

func normalizeSelection(root string, files []string) (string, []string, error) {
	r, err := NormalizePath(root)
	if err != nil {
		return "", nil, err
	}
	if len(files) == 0 {
		return "", nil, ErrInvalidPath
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		n, err := normalizeName(f)
		if err != nil {
			return "", nil, err
		}
		names = append(names, n)
	}
	return r, names, nil
}

// relativeTo cleans a path given relative to a rename root. Moving into a
// subdirectory is allowed, leaving the root is not.
func relativeTo(p string) (string, error) {
	abs, err := NormalizePath(p)
	if err != nil {
		return "", err
	}
	rel := strings.TrimPrefix(abs, "/")
	if rel == "" {
		return "", ErrInvalidPath
	}
	return rel, nil
}
