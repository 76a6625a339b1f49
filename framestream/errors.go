package framestream

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfMemory     = errors.New("out of memory")
	ErrCodecInit       = errors.New("codec initialization failed")
	ErrCodecFailure    = errors.New("codec failure")
	ErrFormat          = errors.New("malformed or unsupported frame")
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrBufferOverflow signals a caller bug: more compressed bytes were pushed than one block can hold.
	ErrBufferOverflow = errors.New("pending buffer overflow")
)

type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindOutOfMemory
	KindCodecInit
	KindCodecFailure
	KindFormat
	KindInvalidArgument
	KindBufferOverflow
	KindUnknown
)

var kindSentinels = []struct {
	kind ErrorKind
	err  error
}{
	{KindOutOfMemory, ErrOutOfMemory},
	{KindCodecInit, ErrCodecInit},
	{KindCodecFailure, ErrCodecFailure},
	{KindFormat, ErrFormat},
	{KindInvalidArgument, ErrInvalidArgument},
	{KindBufferOverflow, ErrBufferOverflow},
}

// KindOf classifies an error returned by a session, nil maps to KindNone.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, s := range kindSentinels {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return KindUnknown
}

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindOutOfMemory:
		return "OutOfMemory"
	case KindCodecInit:
		return "CodecInit"
	case KindCodecFailure:
		return "CodecFailure"
	case KindFormat:
		return "FormatError"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindBufferOverflow:
		return "BufferOverflow"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// sessionError keeps both the kind sentinel and the underlying cause reachable through errors.Is.
type sessionError struct {
	kind    error
	session string
	msg     string
	cause   error
}

func (e *sessionError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("session %s: %s: %v: %v", e.session, e.msg, e.kind, e.cause)
	}
	return fmt.Sprintf("session %s: %s: %v", e.session, e.msg, e.kind)
}

func (e *sessionError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

func newError(kind error, session string, cause error, format string, args ...interface{}) error {
	return &sessionError{
		kind:    kind,
		session: session,
		msg:     fmt.Sprintf(format, args...),
		cause:   cause,
	}
}
