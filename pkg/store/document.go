package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetJSON decodes the document at key into v. It reports false, with a nil
// error, when the key does not exist.
func GetJSON(ctx context.Context, layer Layer, key string, v any) (bool, error) {
	data, err := layer.Get(ctx, key)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", ErrInvalidValue, key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key without expiry.
func SetJSON(ctx context.Context, layer Layer, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrInvalidValue, key, err)
	}
	return layer.Set(ctx, key, data, 0)
}
