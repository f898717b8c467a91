package main

import (
	"fmt"
	"os"

	"github.com/artpar/hostprov/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// OrderFile is the on-disk form of an order for the provision command.
type OrderFile struct {
	OrderRef string              `yaml:"order_ref"`
	Order    domain.OrderRequest `yaml:",inline"`
}

// LoadOrderFile reads a YAML order. Unknown keys are rejected.
func LoadOrderFile(path string) (*OrderFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open order file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var of OrderFile
	if err := dec.Decode(&of); err != nil {
		return nil, fmt.Errorf("parse order file %s: %w", path, err)
	}
	return &of, nil
}
