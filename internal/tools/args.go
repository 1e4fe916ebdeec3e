package tools

import (
	"encoding/json"
	"fmt"
)

// numberArg reads an optional numeric argument, applying fallback when the
// key is absent. JSON numbers arrive as float64; integers that travelled
// through other decoders are accepted too.
func numberArg(args map[string]any, key string, fallback float64) (float64, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidArguments, key)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidArguments, key, raw)
	}
}

// intArg reads an optional whole-number argument within [min, max].
func intArg(args map[string]any, key string, fallback, min, max int) (int, error) {
	f, err := numberArg(args, key, float64(fallback))
	if err != nil {
		return 0, err
	}
	n := int(f)
	if float64(n) != f {
		return 0, fmt.Errorf("%w: %s must be a whole number", ErrInvalidArguments, key)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%w: %s must be between %d and %d", ErrInvalidArguments, key, min, max)
	}
	return n, nil
}

// stringArg reads a string argument. When required, absence or emptiness
// fails; otherwise fallback applies.
func stringArg(args map[string]any, key string, fallback string, required bool) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		if required {
			return "", fmt.Errorf("%w: %s is required", ErrInvalidArguments, key)
		}
		return fallback, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidArguments, key, raw)
	}
	if required && s == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidArguments, key)
	}
	return s, nil
}
