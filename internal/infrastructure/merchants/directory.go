// Package merchants loads per-merchant feed configuration.
package merchants

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/feedcanon/backend/internal/domain"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// file is the on-disk layout of the merchants file
type file struct {
	Merchants []domain.MerchantConfig `yaml:"merchants" validate:"dive"`
}

// Directory is an immutable set of merchant configurations
type Directory struct {
	byName map[string]domain.MerchantConfig
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFile reads a merchants YAML file
func LoadFile(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read merchants file %s: %w", path, err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes and validates merchant configuration from r
func Parse(r io.Reader) (*Directory, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: failed to parse merchants: %v", domain.ErrConfiguration, err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: invalid merchants: %v", domain.ErrConfiguration, err)
	}
	return New(f.Merchants...)
}

// New builds a directory, rejecting duplicate names
func New(configs ...domain.MerchantConfig) (*Directory, error) {
	byName := make(map[string]domain.MerchantConfig, len(configs))
	for _, c := range configs {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: merchant without name", domain.ErrConfiguration)
		}
		if _, dup := byName[c.Name]; dup {
			return nil, fmt.Errorf("%w: merchant %q configured twice", domain.ErrConfiguration, c.Name)
		}
		byName[c.Name] = c
	}
	return &Directory{byName: byName}, nil
}

// Lookup returns the configuration for name
func (d *Directory) Lookup(name string) (domain.MerchantConfig, bool) {
	c, ok := d.byName[name]
	return c, ok
}

// PIDColumns returns the configured identifier column per merchant
func (d *Directory) PIDColumns() map[string]string {
	pid := make(map[string]string, len(d.byName))
	for name, c := range d.byName {
		if c.PID != "" {
			pid[name] = c.PID
		}
	}
	return pid
}

// Names returns the configured merchant names in sorted order
func (d *Directory) Names() []string {
	names := make([]string, 0, len(d.byName))
	for name := range d.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
