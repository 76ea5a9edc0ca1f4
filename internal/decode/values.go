package decode

import (
	"fmt"
	"strings"

	"github.com/adam-ii/dos-int21h/internal/rm"
)

// ValueSet maps register values to symbolic names.
type ValueSet map[uint8]string

// Name returns the symbolic name of v, or v in hex if it has none.
func (s ValueSet) Name(v uint8) string {
	if n, ok := s[v]; ok {
		return n
	}
	return fmt.Sprintf("%#x", v)
}

// SeekOrigin names the AL values of the LSEEK call.
var SeekOrigin = ValueSet{
	rm.SeekSet: "SEEK_SET",
	rm.SeekCur: "SEEK_CUR",
	rm.SeekEnd: "SEEK_END",
}

// OpenAccess names bits 0-2 of the OPEN mode byte.
var OpenAccess = ValueSet{
	0: "read-only",
	1: "write-only",
	2: "read/write",
}

// OpenSharing names bits 4-6 of the OPEN mode byte.
var OpenSharing = ValueSet{
	0: "compatibility",
	1: "deny all",
	2: "deny write",
	3: "deny read",
	4: "deny none",
}

// OpenModeName describes an OPEN mode byte, e.g. "read-only, deny write".
// Compatibility sharing is left out since it is what a plain open asks for.
func OpenModeName(al uint8) string {
	parts := []string{OpenAccess.Name(al & 0x07)}
	if sharing := (al >> 4) & 0x07; sharing != 0 {
		parts = append(parts, OpenSharing.Name(sharing))
	}
	if al&0x80 != 0 {
		parts = append(parts, "no-inherit")
	}
	return strings.Join(parts, ", ")
}
