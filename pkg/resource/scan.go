package resource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/dandye/mcp-security/pkg/log"
)

// MIMEMarkdown is the MIME type of markdown resources.
const MIMEMarkdown = "text/markdown"

// ErrNotRegular is returned by [Stat] for directories, devices and the like.
var ErrNotRegular = errors.New("not a regular file")

// Descriptor describes one file resource.
type Descriptor struct {
	// URI is "file://" followed by the resolved absolute path.
	URI string
	// Path is the resolved absolute path.
	Path        string
	Name        string
	Description string
	// Title is the first markdown heading, if any.
	Title    string
	MIMEType string
	// Tags are unique and sorted.
	Tags []string
	Size int64
}

// Spec describes a directory to scan.
type Spec struct {
	Formatter Formatter
	// Dir is the directory to walk recursively.
	Dir string
	// Tag is added to every descriptor found under Dir.
	Tag string
	// Pattern is a [filepath.Match] glob applied to file base names.
	Pattern  string
	MIMEType string
	// Skip lists base names that are never registered.
	Skip []string
}

// Scan walks spec.Dir and returns descriptors for every regular file whose
// base name matches spec.Pattern and is not in spec.Skip. A missing Dir is
// logged and yields no descriptors. Unreadable entries are logged and
// skipped.
func Scan(ctx context.Context, spec Spec) ([]Descriptor, error) {
	logger := log.WithContext(ctx).With(
		slog.String("dir", spec.Dir),
		slog.String("tag", spec.Tag),
	)

	pattern := spec.Pattern
	if pattern == "" {
		pattern = "*"
	}

	_, err := filepath.Match(pattern, "")
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}

	info, err := os.Stat(spec.Dir)
	if err != nil || !info.IsDir() {
		logger.WarnContext(ctx, "directory not found or not a directory")

		return nil, nil
	}

	// WalkDir does not descend into a symlinked root.
	root, err := filepath.EvalSymlinks(spec.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", spec.Dir, err)
	}

	descriptors := []Descriptor{}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			logger.WarnContext(ctx, "skip unreadable entry",
				slog.String("path", path),
				slog.Any("err", err),
			)

			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if path == root {
			return nil
		}

		name := d.Name()
		if slices.Contains(spec.Skip, name) {
			return nil
		}

		matched, _ := filepath.Match(pattern, name)
		if !matched {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path %q: %w", path, err)
		}

		desc, ok := describe(ctx, spec, filepath.Join(spec.Dir, rel))
		if ok {
			descriptors = append(descriptors, desc)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", spec.Dir, err)
	}

	logger.DebugContext(ctx, "scanned directory", slog.Int("count", len(descriptors)))

	return descriptors, nil
}

func describe(ctx context.Context, spec Spec, path string) (Descriptor, bool) {
	logger := log.WithContext(ctx)

	desc, err := Stat(path)
	if err != nil {
		logger.WarnContext(ctx, "file not found or not a file",
			slog.String("path", path),
			slog.Any("err", err),
		)

		return Descriptor{}, false
	}

	desc.MIMEType = spec.MIMEType
	desc.Tags = tags(spec, path)

	if spec.Formatter.Name != nil {
		desc.Name = spec.Formatter.Name(path, spec.Dir)
	} else {
		desc.Name = filepath.Base(path)
	}
	if spec.Formatter.Description != nil {
		desc.Description = spec.Formatter.Description(path, spec.Dir)
	}

	if IsMarkdown(desc.MIMEType, desc.Path) {
		desc.Title, err = MarkdownTitleFile(desc.Path)
		if err != nil {
			logger.DebugContext(ctx, "read markdown title",
				slog.String("path", desc.Path),
				slog.Any("err", err),
			)
		}
	}

	logger.DebugContext(ctx, "registered resource",
		slog.String("name", desc.Name),
		slog.String("path", desc.Path),
		slog.Any("tags", desc.Tags),
		slog.String("size", humanize.Bytes(uint64(max(0, desc.Size)))), //nolint:gosec // Uses max.
	)

	return desc, true
}

// Stat resolves path and returns a descriptor with URI, Path and Size set.
// It fails with [ErrNotRegular] for anything but a regular file.
func Stat(path string) (Descriptor, error) {
	resolved, err := resolve(path)
	if err != nil {
		return Descriptor{}, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return Descriptor{}, fmt.Errorf("stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrNotRegular, resolved)
	}

	return Descriptor{
		URI:  "file://" + filepath.ToSlash(resolved),
		Path: resolved,
		Size: info.Size(),
	}, nil
}

func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve symlinks: %w", err)
	}

	return resolved, nil
}

// tags returns spec.Tag plus every directory between spec.Dir and path.
func tags(spec Spec, path string) []string {
	set := []string{}
	if spec.Tag != "" {
		set = append(set, spec.Tag)
	}

	rel, err := filepath.Rel(spec.Dir, filepath.Dir(path))
	if err == nil && rel != "." {
		for _, d := range strings.Split(filepath.ToSlash(rel), "/") {
			if d != "" && d != "." {
				set = append(set, d)
			}
		}
	}

	slices.Sort(set)

	return slices.Compact(set)
}

// IsMarkdown reports whether a file is markdown, by MIME type or extension.
func IsMarkdown(mimeType, path string) bool {
	if strings.HasPrefix(mimeType, MIMEMarkdown) {
		return true
	}

	ext := strings.ToLower(filepath.Ext(path))

	return ext == ".md" || ext == ".markdown"
}
