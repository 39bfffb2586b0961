package codec

import (
	"errors"
	"fmt"
)

// ErrSerialization is wrapped by every fault the codec returns.
var ErrSerialization = errors.New("codec: serialization fault")

var (
	ErrUnsupportedPrimitive = fmt.Errorf("%w: unsupported primitive", ErrSerialization)
	ErrStringTooLong        = fmt.Errorf("%w: string too long", ErrSerialization)
	ErrTypeMismatch         = fmt.Errorf("%w: type mismatch", ErrSerialization)
	ErrFieldCountMismatch   = fmt.Errorf("%w: field count mismatch", ErrSerialization)
	ErrTruncated            = fmt.Errorf("%w: truncated data", ErrSerialization)
	ErrInvalidLength        = fmt.Errorf("%w: invalid length", ErrSerialization)
	ErrUnknownTag           = fmt.Errorf("%w: unknown tag", ErrSerialization)
	ErrTrailingBytes        = fmt.Errorf("%w: trailing bytes", ErrSerialization)
)
