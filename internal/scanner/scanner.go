package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	gitignore "github.com/sabhiram/go-gitignore"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

// gitignoreCacheSize bounds the number of parsed .gitignore files kept.
const gitignoreCacheSize = 1000

// alwaysExcluded directories are never walked.
var alwaysExcluded = []string{".git/", ".hg/", ".svn/"}

// Scanner walks a source tree. It may be reused across scans.
type Scanner struct {
	// gitignoreCache maps a directory to its compiled .gitignore, nil if none.
	gitignoreCache *lru.Cache[string, *gitignore.GitIgnore]
	cacheMu        sync.Mutex
}

// New creates a new Scanner.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.GitIgnore](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitignore cache: %w", err)
	}
	return &Scanner{gitignoreCache: cache}, nil
}

// Scan streams matching files in lexical walk order. The channel is closed
// when the walk ends. A missing or non-directory root is returned as an
// error before anything is read.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}

	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeRootDir, "failed to resolve root directory", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeRootDir,
			fmt.Sprintf("root directory %s is not accessible", rootDir), err)
	}
	if !info.IsDir() {
		return nil, cerrors.New(cerrors.ErrCodeRootDir,
			fmt.Sprintf("root path is not a directory: %s", rootDir), nil)
	}

	w := &walker{
		scanner:    s,
		opts:       opts,
		absRoot:    absRoot,
		extensions: extensionSet(opts.Extensions),
		exclude:    gitignore.CompileIgnoreLines(append(append([]string{}, alwaysExcluded...), opts.ExcludePatterns...)...),
	}

	results := make(chan ScanResult, 64)
	go func() {
		defer close(results)
		w.walk(ctx, results)
	}()

	return results, nil
}

// Collect drains Scan into a slice. Skips are returned separately.
func (s *Scanner) Collect(ctx context.Context, opts *ScanOptions) ([]*FileInfo, []*SkippedFile, error) {
	results, err := s.Scan(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	var files []*FileInfo
	var skipped []*SkippedFile
	var walkErr error
	for r := range results {
		switch {
		case r.Error != nil:
			walkErr = r.Error
		case r.Skipped != nil:
			skipped = append(skipped, r.Skipped)
		case r.File != nil:
			files = append(files, r.File)
		}
	}
	if walkErr == nil {
		walkErr = ctx.Err()
	}
	return files, skipped, walkErr
}

type walker struct {
	scanner    *Scanner
	opts       *ScanOptions
	absRoot    string
	extensions map[string]bool
	exclude    *gitignore.GitIgnore
}

func (w *walker) walk(ctx context.Context, results chan<- ScanResult) {
	send := func(r ScanResult) error {
		select {
		case results <- r:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	err := filepath.WalkDir(w.absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(w.absRoot, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if err != nil {
			// Unreadable directory or entry. Files are reported only when
			// their extension would have been collected.
			switch {
			case d != nil && d.IsDir():
				if sendErr := send(ScanResult{Skipped: &SkippedFile{Path: rel + "/", Reason: SkipUnreadable, Err: err}}); sendErr != nil {
					return sendErr
				}
				if rel == "." {
					return nil
				}
				return filepath.SkipDir
			case d != nil && w.accepts(rel):
				return send(ScanResult{Skipped: &SkippedFile{Path: rel, Reason: SkipUnreadable, Err: err}})
			}
			return nil
		}

		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if w.excluded(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !w.accepts(rel) || w.excluded(rel, false) {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !w.opts.FollowSymlinks {
			return send(ScanResult{Skipped: &SkippedFile{Path: rel, Reason: SkipSymlink}})
		}

		info, err := os.Stat(path)
		if err != nil {
			return send(ScanResult{Skipped: &SkippedFile{Path: rel, Reason: SkipUnreadable, Err: err}})
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if w.opts.MaxFileSize > 0 && info.Size() > w.opts.MaxFileSize {
			return send(ScanResult{Skipped: &SkippedFile{Path: rel, Reason: SkipTooLarge}})
		}
		if !w.opts.IncludeBinary {
			binary, err := isBinaryFile(path)
			if err != nil {
				return send(ScanResult{Skipped: &SkippedFile{Path: rel, Reason: SkipUnreadable, Err: err}})
			}
			if binary {
				return send(ScanResult{Skipped: &SkippedFile{Path: rel, Reason: SkipBinary}})
			}
		}

		return send(ScanResult{File: &FileInfo{
			Path:      rel,
			AbsPath:   path,
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			Extension: strings.ToLower(filepath.Ext(rel)),
		}})
	})

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		_ = send(ScanResult{Error: err})
	}
}

func (w *walker) accepts(rel string) bool {
	return w.extensions[strings.ToLower(filepath.Ext(rel))]
}

// excluded applies configured patterns, then every .gitignore from the
// root down to the entry's parent, each relative to its own directory.
func (w *walker) excluded(rel string, isDir bool) bool {
	candidate := rel
	if isDir {
		candidate += "/"
	}
	if w.exclude.MatchesPath(candidate) {
		return true
	}
	if !w.opts.RespectGitignore {
		return false
	}

	dirRel := ""
	parts := strings.Split(rel, "/")
	for i := 0; i < len(parts); i++ {
		m := w.scanner.matcher(filepath.Join(w.absRoot, filepath.FromSlash(dirRel)))
		if m != nil {
			sub := strings.TrimPrefix(candidate, dirRel)
			sub = strings.TrimPrefix(sub, "/")
			if m.MatchesPath(sub) {
				return true
			}
		}
		if dirRel == "" {
			dirRel = parts[i]
		} else {
			dirRel += "/" + parts[i]
		}
	}
	return false
}

// matcher returns the compiled .gitignore of dir, or nil.
func (s *Scanner) matcher(dir string) *gitignore.GitIgnore {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if m, ok := s.gitignoreCache.Get(dir); ok {
		return m
	}

	m, err := gitignore.CompileIgnoreFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		m = nil
	}
	s.gitignoreCache.Add(dir, m)
	return m
}

func extensionSet(exts []string) map[string]bool {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return set
}

// isBinaryFile reports whether the first 512 bytes contain a NUL byte.
func isBinaryFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return bytes.IndexByte(buf[:n], 0) >= 0, nil
}
