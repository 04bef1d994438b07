package upgrade

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/Veraticus/toro/internal/model"
	"gopkg.in/yaml.v3"
)

// mappingFile is the on-disk shape of a mapping batch. Top-level versions fill
// in mappings that omit their own.
//
//	from_version: "2024.1"
//	to_version: "2024.2"
//	mappings:
//	  - from_cat: EGRESOS
//	    from_sub: Gastos_Compras
//	    to_cat: EGRESOS
//	    to_sub: Compras
//	    action: RENAME
type mappingFile struct {
	FromVersion string                 `yaml:"from_version"`
	ToVersion   string                 `yaml:"to_version"`
	Mappings    []model.UpgradeMapping `yaml:"mappings"`
}

// LoadMappingFile reads and validates a YAML mapping file.
func LoadMappingFile(path string) ([]model.UpgradeMapping, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}
	return ParseMappings(data)
}

// ParseMappings decodes and validates a YAML mapping document.
// Actions are accepted in any case.
func ParseMappings(data []byte) ([]model.UpgradeMapping, error) {
	var doc mappingFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMapping, err)
	}

	mappings := make([]model.UpgradeMapping, len(doc.Mappings))
	for i, mp := range doc.Mappings {
		if mp.FromVersion == "" {
			mp.FromVersion = doc.FromVersion
		}
		if mp.ToVersion == "" {
			mp.ToVersion = doc.ToVersion
		}
		mp.Action = model.UpgradeAction(strings.ToUpper(strings.TrimSpace(string(mp.Action))))
		mappings[i] = mp
	}

	if err := ValidateMappings(mappings); err != nil {
		return nil, err
	}
	return mappings, nil
}
