package content

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Parse decodes and validates a YAML content pack.
func Parse(data []byte) (*Pack, error) {
	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, errors.Wrap(err, "content: decode pack")
	}
	if err := pack.Validate(); err != nil {
		return nil, errors.Wrap(err, "content: validate pack")
	}
	return &pack, nil
}

// LoadFile reads, decodes and validates a YAML content pack from disk.
func LoadFile(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "content: read pack %s", path)
	}
	return Parse(data)
}
