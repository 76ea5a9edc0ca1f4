package workload

import (
	"errors"
	"fmt"

	"github.com/adam-ii/dos-int21h/internal/rm"
)

// BufSize is the stream buffer size (BUFSIZ).
const BufSize = 512

var ErrMode = errors.New("unsupported stream mode")

// devInfoIsDevice is bit 7 of the IOCTL device information word.
const devInfoIsDevice = 0x0080

// File is an open stream.
type File struct {
	fd uint16
	// buf is the stream buffer in the data segment; avail bytes from pos on
	// are not consumed yet.
	buf   rm.FarPtr
	pos   uint16
	avail uint16
	// device streams are unbuffered.
	device bool
	eof    bool
}

// Fd is the handle behind f.
func (f *File) Fd() uint16 { return f.fd }

// EOF reports whether a read hit end of file.
func (f *File) EOF() bool { return f.eof }

// Stdio is the buffered stream layer (stdio.h), built on LowLevel.
type Stdio struct {
	io *LowLevel
}

// NewStdio returns the stream layer over io.
func NewStdio(io *LowLevel) *Stdio {
	return &Stdio{io: io}
}

// Fopen opens a stream. Like the C runtime it asks DOS whether the handle
// is a device, to decide on buffering. Only the read modes are supported.
func (s *Stdio) Fopen(name rm.FarPtr, mode string) (*File, error) {
	var al uint8
	switch mode {
	case "r", "rb", "rt":
		al = ORdOnly
	case "r+", "rb+", "r+b":
		al = ORdWr
	default:
		return nil, fmt.Errorf("%w: %q", ErrMode, mode)
	}

	fd, err := s.io.Open(name, al)
	if err != nil {
		return nil, err
	}
	info, err := s.io.DeviceInfo(fd)
	if err != nil {
		s.io.Close(fd)
		return nil, err
	}
	buf, err := s.io.Machine().Alloc(BufSize)
	if err != nil {
		s.io.Close(fd)
		return nil, err
	}
	return &File{fd: fd, buf: buf, device: info&devInfoIsDevice != 0}, nil
}

// Fread reads count items of size bytes into dst and returns the number of
// whole items read.
func (s *Stdio) Fread(dst rm.FarPtr, size, count int, f *File) (int, error) {
	want := size * count
	if want <= 0 {
		return 0, nil
	}
	m := s.io.Machine()
	got := 0
	for got < want && !f.eof {
		if f.avail == 0 {
			if err := s.fill(f, want-got); err != nil {
				return got / size, err
			}
			continue
		}
		n := int(f.avail)
		if n > want-got {
			n = want - got
		}
		m.Write(dst.Add(uint16(got)), m.Read(f.buf.Add(f.pos), n))
		f.pos += uint16(n)
		f.avail -= uint16(n)
		got += n
	}
	return got / size, nil
}

func (s *Stdio) fill(f *File, need int) error {
	n := uint16(BufSize)
	if f.device && need < BufSize {
		n = uint16(need)
	}
	read, err := s.io.Read(f.fd, f.buf, n)
	if err != nil {
		return err
	}
	if read == 0 {
		f.eof = true
	}
	f.pos, f.avail = 0, read
	return nil
}

// Ftell returns the stream position: the handle's position less what is
// still buffered.
func (s *Stdio) Ftell(f *File) (int32, error) {
	pos, err := s.io.Tell(f.fd)
	if err != nil {
		return -1, err
	}
	return pos - int32(f.avail), nil
}

// Fclose closes the stream.
func (s *Stdio) Fclose(f *File) error {
	f.avail = 0
	return s.io.Close(f.fd)
}
