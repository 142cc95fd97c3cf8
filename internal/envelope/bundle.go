package envelope

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// File is one record in a transfer bundle: a relative path, the permission
// bits to restore, and the content.
type File struct {
	Path    string
	Mode    fs.FileMode
	Content []byte
}

// Pack serializes files into a single tar payload so the whole transfer
// unit can be sealed as one ciphertext.
func Pack(files []File) ([]byte, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	for _, f := range files {
		hdr := &tar.Header{
			Name: f.Path,
			Mode: int64(f.Mode.Perm()),
			Size: int64(len(f.Content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("writing header for %s: %w", f.Path, err)
		}
		if _, err := tw.Write(f.Content); err != nil {
			return nil, fmt.Errorf("writing %s: %w", f.Path, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing bundle: %w", err)
	}
	return buf.Bytes(), nil
}

// Unpack deserializes a bundle produced by Pack.
func Unpack(data []byte) ([]File, error) {
	tr := tar.NewReader(bytes.NewReader(data))

	var files []File
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading bundle: %w", err)
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", hdr.Name, err)
		}
		files = append(files, File{
			Path:    hdr.Name,
			Mode:    fs.FileMode(hdr.Mode).Perm(),
			Content: content,
		})
	}
	return files, nil
}

// ReadFiles loads local files into bundle records. Each record's path is the
// file's base name, matching how the receiving side lays files out.
func ReadFiles(paths []string) ([]File, error) {
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%s: only regular files can be bundled", p)
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		files = append(files, File{
			Path:    filepath.Base(p),
			Mode:    info.Mode().Perm(),
			Content: content,
		})
	}
	return files, nil
}

// WriteFiles materializes bundle records under dir, restoring each record's
// permission bits.
func WriteFiles(dir string, files []File) ([]string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		name := filepath.Base(filepath.FromSlash(f.Path))
		target := filepath.Join(dir, name)
		if err := os.WriteFile(target, f.Content, f.Mode); err != nil {
			return nil, fmt.Errorf("writing %s: %w", target, err)
		}
		// WriteFile honors umask; re-apply the exact bits.
		if err := os.Chmod(target, f.Mode); err != nil {
			return nil, fmt.Errorf("restoring mode on %s: %w", target, err)
		}
		written = append(written, target)
	}
	return written, nil
}
