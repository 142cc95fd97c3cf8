package nsync

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// wrapFSErr maps OS-level failures onto the registry error taxonomy while
// keeping the original error in the chain.
func wrapFSErr(err error, path string) error {
	switch {
	case err == nil:
		return nil
	case os.IsNotExist(err):
		return fmt.Errorf("%s: %w: %v", path, ErrNotFound, err)
	case os.IsPermission(err):
		return fmt.Errorf("%s: %w: %v", path, ErrPermissionDenied, err)
	default:
		return fmt.Errorf("%s: %v", path, err)
	}
}

// movePath moves a file or directory, falling back to copy-and-remove when
// rename crosses a filesystem boundary.
func movePath(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if !isCrossDevice(err) {
		return wrapFSErr(err, src)
	}
	if err := copyPath(src, dst); err != nil {
		return err
	}
	return wrapFSErr(os.RemoveAll(src), src)
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return false
	}
	return errors.Is(linkErr.Err, syscall.EXDEV)
}

// copyPath copies a file or directory tree, preserving permission bits.
func copyPath(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return wrapFSErr(err, src)
	}
	if info.IsDir() {
		return copyDir(src, dst)
	}
	return copyFile(src, dst, info.Mode().Perm())
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return wrapFSErr(err, src)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return wrapFSErr(err, dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return wrapFSErr(err, dst)
	}
	// OpenFile honors umask; re-apply the exact bits.
	return wrapFSErr(os.Chmod(dst, mode), dst)
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return wrapFSErr(err, path)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		switch {
		case info.IsDir():
			if err := os.MkdirAll(target, info.Mode().Perm()); err != nil {
				return wrapFSErr(err, target)
			}
			return wrapFSErr(os.Chmod(target, info.Mode().Perm()), target)
		case info.Mode()&os.ModeSymlink != 0:
			dest, err := os.Readlink(path)
			if err != nil {
				return wrapFSErr(err, path)
			}
			return wrapFSErr(os.Symlink(dest, target), target)
		default:
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}
