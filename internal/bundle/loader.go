// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"seedfast/querygate/internal/query"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load reads the descriptor at path and every file it names.
func Load(path string) (*Bundle, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load bundle from %q: %w", path, err)
	}
	var f File
	if err := k.UnmarshalWithConf("", &f, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse bundle %q: %w", path, err)
	}
	if f.Version > 1 {
		return nil, fmt.Errorf("bundle %q: unsupported version %d", path, f.Version)
	}

	dir := filepath.Dir(path)
	var routing string
	if f.Routing != "" {
		text, err := readRelative(dir, f.Routing)
		if err != nil {
			return nil, err
		}
		routing = text
	}

	schemas := make(map[query.Type]string)
	for t, name := range map[query.Type]string{
		query.SQL:     f.Schemas.SQL,
		query.Metrics: f.Schemas.Metrics,
		query.Ticket:  f.Schemas.Ticket,
	} {
		if name == "" {
			continue
		}
		text, err := readRelative(dir, name)
		if err != nil {
			return nil, err
		}
		schemas[t] = text
	}
	return New(routing, schemas), nil
}

func readRelative(dir, name string) (string, error) {
	if !filepath.IsAbs(name) {
		name = filepath.Join(dir, name)
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read bundle file: %w", err)
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", fmt.Errorf("bundle file %q is empty", name)
	}
	return text, nil
}
