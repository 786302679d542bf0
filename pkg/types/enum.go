package types

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// decodeEnum reads a JSON string (or null) for one of the open enumerations.
func decodeEnum(data []byte) (string, error) {
	if string(data) == "null" {
		return "", nil
	}
	var s string
	if err := sonic.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("enum value must be a string: %w", err)
	}
	return s, nil
}
