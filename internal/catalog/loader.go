package catalog

import (
	"bytes"
	_ "embed"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultData []byte

// Parse decodes catalog data from YAML. Unknown fields are rejected so typos
// in data files fail loudly.
func Parse(r io.Reader) (*Data, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var data Data
	if err := dec.Decode(&data); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return &data, nil
}

// Load parses and validates catalog data from YAML
func Load(r io.Reader) (*Catalog, error) {
	data, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return New(data)
}

// LoadFile loads a catalog from a YAML file
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return c, nil
}

// Default returns the catalog compiled into the binary
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(defaultData))
}
