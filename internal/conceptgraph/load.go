package conceptgraph

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// curriculumFile is the on-disk YAML layout of a curriculum.
type curriculumFile struct {
	Concepts []Concept `yaml:"concepts"`
}

// ParseYAML decodes a curriculum document. Unknown fields are rejected so
// typos in authored files surface at load time.
func ParseYAML(data []byte) ([]Concept, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f curriculumFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode curriculum: %w", err)
	}
	return f.Concepts, nil
}

// LoadFile reads and validates a YAML curriculum file.
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read curriculum %s: %w", path, err)
	}
	concepts, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return New(concepts)
}

// MarshalYAML encodes concepts in the layout ParseYAML reads.
func MarshalYAML(concepts []Concept) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(curriculumFile{Concepts: concepts}); err != nil {
		return nil, fmt.Errorf("encode curriculum: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
