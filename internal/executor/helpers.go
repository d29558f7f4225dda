// Utility functions for capabilities.
package executor

import (
	"encoding/json"
	"fmt"
)

// truncateForLog truncates a string for logging purposes.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// StringArg returns args[key] as a string.
func StringArg(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument: %s", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %s must be a string", key)
	}
	return s, nil
}

// RawArg returns args[key] as JSON. String values are assumed to already
// hold a JSON document; anything else is re-encoded.
func RawArg(args map[string]interface{}, key string) ([]byte, error) {
	v, ok := args[key]
	if !ok {
		return nil, fmt.Errorf("missing argument: %s", key)
	}
	if s, ok := v.(string); ok {
		return []byte(s), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("argument %s: %w", key, err)
	}
	return data, nil
}
