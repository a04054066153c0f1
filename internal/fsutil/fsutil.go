// Package fsutil holds the filesystem primitives shared by store and
// cache: atomic writes, writability probes and advisory locks. It mirrors the
// temp-file-then-rename discipline of the teacher's fs.go/txn_writer.go,
// generalized for reuse outside a single manifest/lock pair.
package fsutil

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// WriteFileAtomic writes data to path by creating a temp file in the
// same directory, flushing it, and renaming it into place. A reader can
// never observe a partially-written file. perm is applied to the temp
// file before rename so the final file's mode matches.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-")
	if err != nil {
		return errors.Wrapf(err, "creating temp file in %s", dir)
	}
	tmpName := tmp.Name()
	// Best-effort cleanup if we bail before the rename.
	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing temp file %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "syncing temp file %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing temp file %s", tmpName)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return errors.Wrapf(err, "chmod temp file %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "renaming %s to %s", tmpName, path)
	}
	succeeded = true
	return nil
}

// RemoveIfExists deletes path, treating ENOENT as success: callers
// removing the last tag binding from a chain file race benignly against
// a concurrent unassignTag.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", path)
	}
	return nil
}

// IsWritable reports whether the current user can create files in dir.
// It probes by creating and removing a temp file rather than inspecting
// mode bits, so it behaves correctly under ACLs and across filesystems
// that don't map cleanly onto POSIX permission bits.
func IsWritable(dir string) bool {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	f, err := os.CreateTemp(dir, ".writetest-")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}

// DirMTime returns the modification time of dir as a Unix nanosecond
// timestamp, or 0 if dir does not exist.
func DirMTime(dir string) (int64, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "stat %s", dir)
	}
	return fi.ModTime().UnixNano(), nil
}
