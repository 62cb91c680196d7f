package oscbridge

import "errors"

var (
	ErrInvalidConfig = errors.New("oscbridge: invalid options")
	ErrClosed        = errors.New("oscbridge: object is closed")

	ErrPortInUse          = errors.New("transport: could not bind udp port")
	ErrUnsupportedTypeTag = errors.New("transport: unsupported osc type tag")

	ErrDuplicateAddress = errors.New("registry: address already registered")
	ErrUnknownAddress   = errors.New("registry: address is not registered")
	ErrArityMismatch    = errors.New("registry: value count does not match slot width")
	ErrIndexOutOfRange  = errors.New("registry: stream index out of range")

	ErrDuplicateTarget       = errors.New("send: target already registered")
	ErrUnknownTarget         = errors.New("send: target is not registered")
	ErrTypeSignatureMismatch = errors.New("send: values do not match type signature")
)
