package hue

import (
	"errors"
	"fmt"
)

// ErrNoSuccess is reported when the bridge answered without a "success" entry.
var ErrNoSuccess = errors.New("bridge response has no success entry")

// ConfigAPIError reports that the bridge rejected (or never answered) a configuration request.
type ConfigAPIError struct {
	Op    string
	Group string
	Err   error
}

func (e *ConfigAPIError) Error() string {
	return fmt.Sprintf("%s for group %s: %v", e.Op, e.Group, e.Err)
}

func (e *ConfigAPIError) Unwrap() error { return e.Err }

// BridgeError is an entry of the bridge's error array.
type BridgeError struct {
	Type        int
	Address     string
	Description string
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("bridge error %d at %s: %s", e.Type, e.Address, e.Description)
}

// checkSuccess accepts a response whose first array element carries a "success" key.
func checkSuccess(resp any) error {
	items, ok := resp.([]any)
	if !ok || len(items) == 0 {
		return ErrNoSuccess
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		return ErrNoSuccess
	}
	if _, ok := first["success"]; ok {
		return nil
	}
	if raw, ok := first["error"].(map[string]any); ok {
		be := &BridgeError{}
		if t, ok := raw["type"].(float64); ok {
			be.Type = int(t)
		}
		be.Address, _ = raw["address"].(string)
		be.Description, _ = raw["description"].(string)
		return fmt.Errorf("%w: %w", ErrNoSuccess, be)
	}
	return ErrNoSuccess
}
