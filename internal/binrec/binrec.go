// Package binrec provides the shared plumbing for fixed-layout binary records:
// error kinds, conversion stages and full-length read/write helpers.
//
// Records are always serialised field by field at known offsets in
// little-endian byte order. Nothing in this module relies on the in-memory
// layout of a Go struct.
package binrec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// BlockSize is the fixed 512-byte unit used by block-structured formats.
const BlockSize = 512

// Order is the byte order of every record this module writes.
var Order = binary.LittleEndian

// Kind classifies a codec failure.
type Kind int

const (
	// KindOpen means a source or sink could not be accessed.
	KindOpen Kind = iota + 1
	// KindTruncated means fewer bytes were available than the format declares.
	KindTruncated
	// KindWrite means the destination rejected a write.
	KindWrite
	// KindUnsupportedFormat means the declared layout is one this module does not handle.
	KindUnsupportedFormat
)

func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "open error"
	case KindTruncated:
		return "truncated"
	case KindWrite:
		return "write error"
	case KindUnsupportedFormat:
		return "unsupported format"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Stage names the part of a conversion that failed.
type Stage string

const (
	StageOpen   Stage = "open"
	StageHeader Stage = "header"
	StageData   Stage = "data"
	StageWrite  Stage = "write"
)

// Sentinels for errors.Is. Any *Error matches the sentinel of its Kind.
var (
	ErrOpen              = &Error{Kind: KindOpen}
	ErrTruncated         = &Error{Kind: KindTruncated}
	ErrWrite             = &Error{Kind: KindWrite}
	ErrUnsupportedFormat = &Error{Kind: KindUnsupportedFormat}
)

// Error is a codec failure tagged with its kind and stage.
type Error struct {
	Kind  Kind
	Stage Stage
	// Op is a short description of what was being read or written.
	Op  string
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Stage != "" {
		msg = string(e.Stage) + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind. A target with an
// empty stage matches any stage.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Stage == "" || t.Stage == e.Stage
}

// Errorf builds an *Error with a formatted cause.
func Errorf(kind Kind, stage Stage, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Stage: stage, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// StageOf returns the stage of the first *Error in err's chain, or "".
func StageOf(err error) Stage {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}

// ReadFull fills buf from r. A source that ends early yields a Truncated
// error; any other read failure is reported as an open error.
func ReadFull(r io.Reader, buf []byte, stage Stage, op string) error {
	n, err := io.ReadFull(r, buf)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return Errorf(KindTruncated, stage, op, "got %d of %d bytes", n, len(buf))
	}
	return &Error{Kind: KindOpen, Stage: stage, Op: op, Err: err}
}

// WriteFull writes buf to w and fails with a WriteError unless every byte
// was accepted.
func WriteFull(w io.Writer, buf []byte, stage Stage, op string) error {
	n, err := w.Write(buf)
	if err != nil {
		return &Error{Kind: KindWrite, Stage: stage, Op: op, Err: err}
	}
	if n < len(buf) {
		return &Error{Kind: KindWrite, Stage: stage, Op: op, Err: io.ErrShortWrite}
	}
	return nil
}

// PutFloat32 stores f at b[0:4].
func PutFloat32(b []byte, f float32) {
	Order.PutUint32(b, math.Float32bits(f))
}

// Float32 loads a float32 from b[0:4].
func Float32(b []byte) float32 {
	return math.Float32frombits(Order.Uint32(b))
}
