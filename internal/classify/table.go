package classify

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"budgetboard/internal/core"
)

var ErrUnknownGroup = errors.New("unknown budget group")

// tableFile is the on-disk shape of a keyword table, e.g. in YAML:
//
//	groups:
//	  - name: Mandatory
//	    keywords: [food, rent]
//	  - name: Savings
//	    keywords: [savings]
type tableFile struct {
	Groups []groupEntry `yaml:"groups" toml:"groups"`
}

type groupEntry struct {
	Name     string   `yaml:"name" toml:"name"`
	Keywords []string `yaml:"keywords" toml:"keywords"`
}

// LoadTable reads a keyword table from a .yaml/.yml or .toml file. Groups not
// listed keep their default keywords.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keyword table: %w", err)
	}
	var f tableFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("parsing keyword table: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing keyword table: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported keyword table format %q", filepath.Ext(path))
	}
	return f.merge(DefaultTable())
}

func (f tableFile) merge(base Table) (Table, error) {
	for _, e := range f.Groups {
		g, ok := core.ParseBudgetGroup(e.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, e.Name)
		}
		if g == Fallback {
			return nil, fmt.Errorf("%s is the fallback group and takes no keywords", g)
		}
		base[g] = e.Keywords
	}
	return base, nil
}

// FromFile builds a classifier from path, or the default one when path is empty.
func FromFile(path string) (*Classifier, error) {
	if path == "" {
		return Default(), nil
	}
	t, err := LoadTable(path)
	if err != nil {
		return nil, err
	}
	return New(t), nil
}
