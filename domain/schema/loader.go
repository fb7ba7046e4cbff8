package schema

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/richardhadden/pangloss/pkg/logger"
)

// File is the on-disk shape of one model file. A file may declare any mix
// of traits, templates and models; files in a directory are merged into a
// single registry.
type File struct {
	Traits    []TraitDescriptor `yaml:"traits,omitempty"`
	Templates []ReifiedTemplate `yaml:"templates,omitempty"`
	Models    []ModelDescriptor `yaml:"models,omitempty"`
}

// LoadDir builds a finalized registry from every .yaml/.yml file in dir.
// Files are read in lexical order so registration errors are stable.
func LoadDir(dir string, log *slog.Logger) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read model dir %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("no model files in %s", dir)
	}

	reg := NewRegistry()
	for _, path := range paths {
		if err := loadFile(reg, path); err != nil {
			return nil, err
		}
	}

	if err := reg.Finalize(); err != nil {
		return nil, err
	}

	log.Info("schema loaded",
		logger.Scope("schema"),
		slog.Int("files", len(paths)),
		slog.Int("models", len(reg.models)),
		slog.Int("traits", len(reg.traits)),
		slog.Int("templates", len(reg.templates)))

	return reg, nil
}

func loadFile(reg *Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for _, t := range file.Traits {
		if err := reg.RegisterTrait(t); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	for _, t := range file.Templates {
		if err := reg.RegisterTemplate(t); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	for _, m := range file.Models {
		if err := reg.RegisterModel(m); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// ParseTargetRef parses the compact "Model", "trait:Name" or "typeparam"
// forms used in model files.
func ParseTargetRef(s string) TargetRef {
	switch {
	case s == "typeparam":
		return TargetRef{Kind: TargetTypeParam}
	case strings.HasPrefix(s, "trait:"):
		return TargetRef{Kind: TargetTrait, Label: strings.TrimPrefix(s, "trait:")}
	default:
		return TargetRef{Kind: TargetModel, Label: s}
	}
}

// UnmarshalYAML accepts either the compact string form or the explicit
// {kind, label} mapping.
func (t *TargetRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*t = ParseTargetRef(value.Value)
		return nil
	}
	type plain TargetRef
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = TargetRef(p)
	return nil
}
