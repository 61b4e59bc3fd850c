package iso

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/paketo-buildpacks/packit/v2/fs"
	"github.com/paketo-buildpacks/packit/v2/scribe"
	"github.com/paketo-buildpacks/tally/internal/discovery"
)

const (
	// ISO9660 volume descriptors start at sector 16; the standard identifier
	// follows the one byte type code.
	descriptorOffset = 16*2048 + 1
	standardID       = "CD001"
)

// Detect reports whether path names an ISO9660 image, either by extension or
// by the standard identifier of its first volume descriptor.
func Detect(path string) bool {
	if strings.EqualFold(filepath.Ext(path), ".iso") {
		return true
	}

	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	id := make([]byte, len(standardID))
	_, err = file.ReadAt(id, descriptorOffset)
	if err != nil {
		return false
	}

	return bytes.Equal(id, []byte(standardID))
}

// An Extractor reads ISO9660 images with go-diskfs.
type Extractor struct {
	extractDir string
	logger     scribe.Logger
}

func NewExtractor(extractDir string, logger scribe.Logger) Extractor {
	return Extractor{
		extractDir: extractDir,
		logger:     logger,
	}
}

// Label returns the volume identifier of the ISO.
func (e Extractor) Label(isoPath string) (string, error) {
	var label string
	err := e.withFilesystem(isoPath, func(fsys filesystem.FileSystem) error {
		label = strings.TrimSpace(fsys.Label())
		return nil
	})
	if err != nil {
		return "", err
	}

	return label, nil
}

// Extract copies the ISO tree into {extractDir}/{basename}. An existing,
// non-empty extraction is reused.
func (e Extractor) Extract(isoPath string) (string, error) {
	destination := filepath.Join(e.extractDir, filepath.Base(isoPath))

	entries, err := os.ReadDir(destination)
	if err == nil && len(entries) > 0 {
		e.logger.Action("Reusing extracted ISO at %s", destination)
		return destination, nil
	}

	err = os.MkdirAll(destination, os.ModePerm)
	if err != nil {
		return "", fmt.Errorf("failed to create extraction directory: %w", err)
	}

	e.logger.Action("Extracting %s to %s", isoPath, destination)

	err = e.withFilesystem(isoPath, func(fsys filesystem.FileSystem) error {
		return copyTree(fsys, "/", destination)
	})
	if err != nil {
		return "", err
	}

	return destination, nil
}

func (e Extractor) withFilesystem(isoPath string, f func(filesystem.FileSystem) error) (err error) {
	exists, err := fs.Exists(isoPath)
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf("ISO file %s does not exist", isoPath)
	}

	disk, err := diskfs.Open(isoPath, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return fmt.Errorf("failed to open ISO %s: %w", isoPath, err)
	}
	defer func() {
		if err2 := disk.Close(); err2 != nil && err == nil {
			err = err2
		}
	}()

	fsys, err := disk.GetFilesystem(0)
	if err != nil {
		return fmt.Errorf("failed to read ISO9660 filesystem of %s: %w", isoPath, err)
	}

	return f(fsys)
}

func copyTree(fsys filesystem.FileSystem, source, destination string) error {
	entries, err := fsys.ReadDir(source)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", source, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			continue
		}

		src := path.Join(source, name)
		dst := filepath.Join(destination, name)

		if entry.IsDir() {
			err = os.MkdirAll(dst, os.ModePerm)
			if err != nil {
				return err
			}

			err = copyTree(fsys, src, dst)
			if err != nil {
				return err
			}

			continue
		}

		err = copyFile(fsys, src, dst)
		if err != nil {
			return err
		}
	}

	return nil
}

func copyFile(fsys filesystem.FileSystem, source, destination string) (err error) {
	in, err := fsys.OpenFile(source, os.O_RDONLY)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", source, err)
	}
	defer func() {
		if err2 := in.Close(); err2 != nil && err == nil {
			err = err2
		}
	}()

	out, err := os.Create(destination)
	if err != nil {
		return err
	}
	defer func() {
		if err2 := out.Close(); err2 != nil && err == nil {
			err = err2
		}
	}()

	_, err = io.Copy(out, in)
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", source, err)
	}

	return err // err should be nil here, but return err to catch deferred error
}

// FindImagesDir locates the images directory of an extracted tree, either
// directly beneath root or anywhere below it.
func FindImagesDir(root string) (string, bool) {
	direct := filepath.Join(root, discovery.ImagesDir)
	if info, err := os.Stat(direct); err == nil && info.IsDir() {
		return direct, true
	}

	var found string
	errFound := errors.New("found")
	_ = filepath.WalkDir(root, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		if d.IsDir() && d.Name() == discovery.ImagesDir && p != root {
			found = p
			return errFound
		}

		return nil
	})

	return found, found != ""
}
