package fs

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"notesim/internal/domain"
)

// Vault is a directory of markdown notes addressed by slash-separated
// paths relative to its root.
type Vault struct {
	root     string
	includes []string
	excludes []string
	ignore   domain.IgnoreRule
}

func NewVault(root string, includes, excludes []string, ignore domain.IgnoreRule) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if len(includes) == 0 {
		includes = []string{"**/*" + domain.NoteExt}
	}
	return &Vault{
		root:     abs,
		includes: includes,
		excludes: excludes,
		ignore:   ignore,
	}, nil
}

func (v *Vault) Root() string {
	return v.root
}

// List walks the vault and returns every eligible note that is not ignored,
// sorted by path.
func (v *Vault) List(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document

	err := filepath.Walk(v.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(v.root, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		rel := filepath.ToSlash(relPath)

		if info.IsDir() {
			if v.ignore.MatchSegment(info.Name()) || v.shouldExclude(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.Mode().IsRegular() || !domain.IsEligible(rel) {
			return nil
		}
		if v.ignore.Match(rel) {
			return nil
		}
		if v.shouldInclude(rel) && !v.shouldExclude(rel) {
			docs = append(docs, domain.Document{
				Path:    rel,
				ModTime: info.ModTime(),
				Size:    info.Size(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

func (v *Vault) Stat(ctx context.Context, path string) (domain.Document, error) {
	full, ok := v.resolve(path)
	if !ok {
		return domain.Document{}, &domain.NotFoundError{Path: path}
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Document{}, &domain.NotFoundError{Path: path}
		}
		return domain.Document{}, err
	}
	if !info.Mode().IsRegular() {
		return domain.Document{}, &domain.NotFoundError{Path: path}
	}
	return domain.Document{
		Path:    path,
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}, nil
}

func (v *Vault) Read(ctx context.Context, path string) (string, error) {
	full, ok := v.resolve(path)
	if !ok {
		return "", &domain.NotFoundError{Path: path}
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &domain.NotFoundError{Path: path}
		}
		return "", err
	}
	return string(data), nil
}

func (v *Vault) Exists(ctx context.Context, path string) (bool, error) {
	_, err := v.Stat(ctx, path)
	if err == nil {
		return true, nil
	}
	if domain.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// resolve maps a vault path to a file path, refusing anything that would
// leave the vault.
func (v *Vault) resolve(path string) (string, bool) {
	local := filepath.FromSlash(path)
	if path == "" || !filepath.IsLocal(local) {
		return "", false
	}
	return filepath.Join(v.root, local), true
}

func (v *Vault) shouldInclude(path string) bool {
	for _, pattern := range v.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (v *Vault) shouldExclude(path string) bool {
	for _, pattern := range v.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}
