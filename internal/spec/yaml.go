package spec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// TableFile is a field table loaded from YAML. Fields listed in the file
// override the table named by Extends.
type TableFile struct {
	Name        string
	Description string
	Extends     string
	Fields      Table
}

type yamlTable struct {
	Name        string                `yaml:"name"`
	Description string                `yaml:"description"`
	Extends     string                `yaml:"extends"`
	Fields      map[int]yamlFieldSpec `yaml:"fields"`
}

type yamlFieldSpec struct {
	Format    string `yaml:"format"`
	Type      string `yaml:"type"`
	MaxLength int    `yaml:"max_length"`
	Category  string `yaml:"category"`
	Name      string `yaml:"name"`
}

// LoadYAML reads a table definition such as:
//
//	name: acme-host
//	description: Acme host interface
//	extends: iso8583-1987
//	fields:
//	  48: {format: LLLVAR, type: ans, max_length: 512, category: private, name: Acme Data}
func LoadYAML(r io.Reader) (*TableFile, error) {
	var raw yamlTable
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode field table: %w", err)
	}

	tf := &TableFile{
		Name:        strings.TrimSpace(raw.Name),
		Description: strings.TrimSpace(raw.Description),
		Extends:     strings.TrimSpace(raw.Extends),
		Fields:      make(Table, len(raw.Fields)),
	}
	for n, f := range raw.Fields {
		format, err := ParseFormat(f.Format)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", n, err)
		}
		dt, err := ParseDataType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", n, err)
		}
		category := Category(strings.ToLower(strings.TrimSpace(f.Category)))
		if category == "" {
			category = CategoryPrivate
		}
		name := f.Name
		if name == "" {
			name = fmt.Sprintf("Field %d", n)
		}
		tf.Fields[n] = FieldSpec{
			Number:    n,
			Format:    format,
			Type:      dt,
			MaxLength: f.MaxLength,
			Category:  category,
			Name:      name,
		}
	}
	if err := tf.Fields.Validate(); err != nil {
		return nil, err
	}
	return tf, nil
}

// LoadYAMLFile loads a table file; the file stem is used when the document
// does not name itself.
func LoadYAMLFile(path string) (*TableFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open field table: %w", err)
	}
	defer f.Close()

	tf, err := LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if tf.Name == "" {
		tf.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return tf, nil
}
