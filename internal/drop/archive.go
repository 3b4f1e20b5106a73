package drop

import (
	"fmt"
	"io"
	"path"

	"github.com/klauspost/compress/zip"
)

// PackFolder streams the subtree of the folder name into w as a zip archive.
// Entry names are relative to the folder, with no leading folder prefix.
// Empty directories are omitted. A missing folder, or a name that is a plain
// file, yields ErrNotFound.
func PackFolder(storage Storage, name string, w io.Writer) error {
	rel, err := CleanRelPath(name)
	if err != nil {
		return err
	}

	info, err := storage.Stat(rel)
	if err != nil {
		return ioError("packing", rel, err)
	}
	if !info.IsDir {
		return fmt.Errorf("packing %s: not a folder: %w", rel, ErrNotFound)
	}

	zw := zip.NewWriter(w)
	err = storage.WalkFiles(rel, func(p string, fi EntryInfo) error {
		return addZipEntry(zw, storage, path.Join(rel, p), p, fi)
	})
	if err != nil {
		zw.Close()
		return ioError("packing", rel, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing archive %s: %w: %v", rel, ErrIO, err)
	}
	return nil
}

// PackFile writes a zip archive holding the single file at rel under its base
// name. A folder is packed as PackFolder does.
func PackFile(storage Storage, rel string, w io.Writer) error {
	info, err := storage.Stat(rel)
	if err != nil {
		return ioError("packing", rel, err)
	}
	if info.IsDir {
		return PackFolder(storage, rel, w)
	}

	zw := zip.NewWriter(w)
	if err := addZipEntry(zw, storage, rel, path.Base(rel), info); err != nil {
		zw.Close()
		return ioError("packing", rel, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing archive %s: %w: %v", rel, ErrIO, err)
	}
	return nil
}

// addZipEntry copies the file at src into zw as entryName. A file that
// disappeared before it could be opened is skipped.
func addZipEntry(zw *zip.Writer, storage Storage, src, entryName string, fi EntryInfo) error {
	rc, err := storage.Open(src)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	defer rc.Close()

	hdr := &zip.FileHeader{
		Name:     entryName,
		Method:   zip.Deflate,
		Modified: fi.ModTime,
	}
	fw, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(fw, rc)
	return err
}
