package workload

import (
	"github.com/adam-ii/dos-int21h/internal/tracer"
)

// ReadSize is what each demo reads from the file.
const ReadSize = 64

// RunIO opens name through the handle layer, reads, tells and closes it with
// the gate hooked, noting each step in the trace, then flushes the trace.
func RunIO(sess *tracer.Session, io *LowLevel, name string) error {
	m := io.Machine()
	sess.Note("***** io.h functions *****\n")

	err := sess.Run(func() error {
		fname, err := m.PutString(name)
		if err != nil {
			return err
		}
		sess.Note("\nopen(%s) (%s)\n", name, fname)
		fd, err := io.Open(fname, ORdOnly)
		if err != nil {
			// nothing opened, nothing else to show
			return nil
		}

		buf, err := m.Alloc(ReadSize)
		if err != nil {
			return err
		}
		sess.Note("\nread() fd=%d buffer=%s size=%d\n", fd, buf, ReadSize)
		io.Read(fd, buf, ReadSize)

		sess.Note("\ntell() fd=%d\n", fd)
		io.Tell(fd)

		sess.Note("\nclose() fd=%d\n", fd)
		io.Close(fd)
		return nil
	})

	sess.Flush()
	return err
}

// RunStdio does the same through the stream layer.
func RunStdio(sess *tracer.Session, stdio *Stdio, name string) error {
	m := stdio.io.Machine()
	sess.Note("***** stdio.h functions *****\n")

	err := sess.Run(func() error {
		fname, err := m.PutString(name)
		if err != nil {
			return err
		}
		sess.Note("\nfopen(%s) (%s)\n", name, fname)
		f, err := stdio.Fopen(fname, "r")
		if err != nil {
			return nil
		}

		buf, err := m.Alloc(ReadSize)
		if err != nil {
			return err
		}
		sess.Note("\nfread() buffer=%s size=%d\n", buf, ReadSize)
		stdio.Fread(buf, ReadSize, 1, f)

		sess.Note("\nftell()\n")
		stdio.Ftell(f)

		sess.Note("\nfclose()\n")
		stdio.Fclose(f)
		return nil
	})

	sess.Flush()
	return err
}
