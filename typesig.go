package oscbridge

import "fmt"

// Type tags of the data path. The control path only ever carries the
// numeric subset.
const supportedTags = "ihfds"

func validateSignature(sig string) error {
	if len(sig) == 0 {
		return fmt.Errorf("%w: empty type signature", ErrInvalidConfig)
	}
	for i := 0; i < len(sig); i++ {
		if !isSupportedTag(sig[i]) {
			return fmt.Errorf("%w: type signature %q: unknown tag %q at position %d",
				ErrInvalidConfig, sig, string(sig[i]), i)
		}
	}
	return nil
}

func isSupportedTag(tag byte) bool {
	for i := 0; i < len(supportedTags); i++ {
		if supportedTags[i] == tag {
			return true
		}
	}
	return false
}

// coerceToSignature checks values against a type signature and returns
// them as the exact wire types the codec expects. Go untyped integer and
// float literals land as int and float64, so the natural widenings are
// accepted; anything else is a mismatch.
func coerceToSignature(sig string, values []any) ([]any, error) {
	if len(values) != len(sig) {
		return nil, fmt.Errorf("%w: signature %q wants %d values, got %d",
			ErrTypeSignatureMismatch, sig, len(sig), len(values))
	}
	out := make([]any, len(values))
	for i, v := range values {
		coerced, ok := coerceValue(sig[i], v)
		if !ok {
			return nil, fmt.Errorf("%w: signature %q: value %d is %T, want tag %q",
				ErrTypeSignatureMismatch, sig, i, v, string(sig[i]))
		}
		out[i] = coerced
	}
	return out, nil
}

func coerceValue(tag byte, v any) (any, bool) {
	switch tag {
	case 'i':
		switch v := v.(type) {
		case int32:
			return v, true
		case int:
			return int32(v), true
		}
	case 'h':
		switch v := v.(type) {
		case int64:
			return v, true
		case int:
			return int64(v), true
		}
	case 'f':
		switch v := v.(type) {
		case float32:
			return v, true
		case float64:
			return float32(v), true
		}
	case 'd':
		switch v := v.(type) {
		case float64:
			return v, true
		}
	case 's':
		switch v := v.(type) {
		case string:
			return v, true
		}
	}
	return nil, false
}

// supportedArguments reports whether every decoded argument belongs to
// the supported tag set. The codec also understands blobs, booleans and
// time tags; those messages are dropped before delivery.
func supportedArguments(args []any) bool {
	for _, a := range args {
		switch a.(type) {
		case int32, int64, float32, float64, string:
		default:
			return false
		}
	}
	return true
}

// numericValues converts the arguments of a control-path message to
// float64. It fails on strings, which have no meaning on a control slot.
func numericValues(args []any, dst []float64) bool {
	if len(args) != len(dst) {
		return false
	}
	for i, a := range args {
		switch a := a.(type) {
		case int32:
			dst[i] = float64(a)
		case int64:
			dst[i] = float64(a)
		case float32:
			dst[i] = float64(a)
		case float64:
			dst[i] = a
		default:
			return false
		}
	}
	return true
}
