package discovery

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML domain document
func Parse(data []byte) (*Domain, error) {
	var domain Domain
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&domain); err != nil {
		return nil, fmt.Errorf("failed to parse domain: %w", err)
	}
	return &domain, nil
}

// LoadFile reads and decodes a YAML domain file
func LoadFile(path string) (*Domain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read domain file %s: %w", path, err)
	}
	domain, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return domain, nil
}

// FileService discovers the domain from one or more YAML files. Later files
// extend earlier ones; duplicate type names keep the first declaration.
type FileService struct {
	Paths []string
}

// NewFileService creates a FileService for the given paths
func NewFileService(paths ...string) *FileService {
	return &FileService{Paths: paths}
}

// Discover implements Service
func (s *FileService) Discover() (*Domain, error) {
	if len(s.Paths) == 0 {
		return nil, fmt.Errorf("no domain files configured")
	}

	domain := NewDomain()
	for _, path := range s.Paths {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		domain.Merge(loaded)
	}

	if err := domain.Validate(); err != nil {
		return nil, err
	}
	return domain, nil
}

// Marshal encodes a domain as YAML
func Marshal(d *Domain) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode domain: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
