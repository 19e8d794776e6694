// Package configx decodes configuration files shared by the server and the
// client. JSON is the default format; files ending in .toml are decoded as
// TOML.
package configx

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DecodeFile reads path and decodes it into v, choosing the format by file
// extension.
func DecodeFile(path string, v any) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, v); err != nil {
			return fmt.Errorf("decode toml %s: %w", path, err)
		}
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode json %s: %w", path, err)
	}
	return nil
}
