package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// parseYAML decodes config.yaml into cfg. ${VAR} and $VAR references are expanded
// from the environment before decoding, so secrets can stay out of the file.
// Unknown keys are rejected.
func parseYAML(r io.Reader, cfg *Config) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	expanded := os.Expand(string(raw), func(key string) string {
		// keep a literal "$" when the reference is empty ("$$" or trailing "$")
		if key == "" || key == "$" {
			return "$"
		}
		return os.Getenv(key)
	})

	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}
