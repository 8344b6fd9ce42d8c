package config

import (
	"fmt"
	"io"

	yaml "go.yaml.in/yaml/v3"
)

// Dump writes s as YAML. Used by -print-config to show what was actually loaded.
func Dump(w io.Writer, s *Settings) error {
	if s == nil {
		return fmt.Errorf("dump: nil settings")
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}
	return enc.Close()
}
