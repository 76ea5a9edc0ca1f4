package dos

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/text/encoding/charmap"

	"github.com/adam-ii/dos-int21h/internal/rm"
)

// Standard device handles, open in every program.
const (
	HandleStdin  uint16 = 0
	HandleStdout uint16 = 1
	HandleStderr uint16 = 2
	HandleStdaux uint16 = 3
	HandleStdprn uint16 = 4

	// FirstFileHandle is the handle the first opened file gets.
	FirstFileHandle uint16 = 5
)

// MaxHandles is the size of the handle table (FILES=20).
const MaxHandles = 20

// Open mode fields of the OPEN call's AL.
const (
	accessMask   = 0x07
	sharingShift = 4
	sharingMask  = 0x07
)

const (
	shareCompat = iota
	shareDenyAll
	shareDenyWrite
	shareDenyRead
	shareDenyNone
)

// openFile is one entry of the handle table.
type openFile struct {
	name string
	f    *os.File
	lock *flock.Flock
	// written is set by the first write and reported by IOCTL 00h.
	written bool
}

func (o *openFile) close() error {
	if o.lock != nil {
		o.lock.Close()
	}
	return o.f.Close()
}

// hostPath maps a DOS path to a host path below root. Names are code page
// 437; drive letters are dropped and backslashes become separators. An
// absolute host path is used as is, which lets a program open itself. A
// relative name that climbs out of root is not found.
func hostPath(root string, name []byte) (string, error) {
	s, err := charmap.CodePage437.NewDecoder().Bytes(name)
	if err != nil {
		return "", rm.ErrPathNotFound
	}
	p := string(s)
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	if len(p) >= 2 && p[1] == ':' {
		p = p[2:]
	}
	p = strings.ReplaceAll(p, `\`, "/")
	if p == "" {
		return "", rm.ErrFileNotFound
	}
	root = filepath.Clean(root)
	path := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(p, "/")))
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", rm.ErrPathNotFound
	}
	return path, nil
}

// openFlags translates the access field of an OPEN mode byte.
func openFlags(mode uint8) (int, error) {
	switch mode & accessMask {
	case 0:
		return os.O_RDONLY, nil
	case 1:
		return os.O_WRONLY, nil
	case 2:
		return os.O_RDWR, nil
	}
	return 0, rm.ErrInvalidAccess
}

// shareLock takes the host lock matching the sharing field of an OPEN mode
// byte. Deny-all and deny-write hold an exclusive lock; the other modes a
// shared one, so they fail only against an exclusive holder.
func shareLock(path string, mode uint8) (*flock.Flock, error) {
	lock := flock.New(path)
	var locked bool
	var err error
	switch (mode >> sharingShift) & sharingMask {
	case shareDenyAll, shareDenyWrite:
		locked, err = lock.TryLock()
	case shareCompat, shareDenyRead, shareDenyNone:
		locked, err = lock.TryRLock()
	default:
		return nil, rm.ErrInvalidAccess
	}
	if err != nil {
		lock.Close()
		return nil, errorCode(err)
	}
	if !locked {
		lock.Close()
		return nil, rm.ErrSharing
	}
	return lock, nil
}

// errorCode maps a host error to the DOS code a program would see.
func errorCode(err error) rm.ErrorCode {
	var code rm.ErrorCode
	switch {
	case errors.As(err, &code):
		return code
	case errors.Is(err, fs.ErrNotExist):
		return rm.ErrFileNotFound
	case errors.Is(err, fs.ErrPermission):
		return rm.ErrAccessDenied
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return rm.ErrPathNotFound
	}
	return rm.ErrAccessDenied
}
