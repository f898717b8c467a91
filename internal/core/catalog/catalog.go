// Package catalog parses the hosting plan catalog.
// This is part of the Functional Core - parsing works on bytes, no I/O.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var defaultPlans []byte

var (
	ErrEmptyCatalog    = errors.New("catalog has no plans")
	ErrPlanIDRequired  = errors.New("plan id is required")
	ErrPackageRequired = errors.New("plan package is required")
	ErrDuplicatePlanID = errors.New("duplicate plan id")
)

// Plan is a sellable hosting plan.
type Plan struct {
	ID            string `yaml:"id" json:"id"`
	Name          string `yaml:"name" json:"name"`
	Package       string `yaml:"package" json:"package"`
	DiskMB        int    `yaml:"disk_mb" json:"disk_mb"`
	EmailAccounts int    `yaml:"email_accounts" json:"email_accounts"`
}

// Catalog is an immutable set of plans indexed by ID.
type Catalog struct {
	plans []Plan
	byID  map[string]Plan
}

type catalogFile struct {
	Plans []Plan `yaml:"plans"`
}

// Parse decodes a YAML catalog and validates every plan.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Plans) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{byID: make(map[string]Plan, len(f.Plans))}
	for _, p := range f.Plans {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, ErrPlanIDRequired
		}
		if p.Package == "" {
			return nil, fmt.Errorf("%w: %s", ErrPackageRequired, p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlanID, p.ID)
		}
		if p.Name == "" {
			p.Name = p.ID
		}
		c.byID[p.ID] = p
		c.plans = append(c.plans, p)
	}
	return c, nil
}

// Default returns the catalog embedded in the binary.
func Default() *Catalog {
	c, err := Parse(defaultPlans)
	if err != nil {
		panic(fmt.Sprintf("embedded plan catalog is invalid: %v", err))
	}
	return c
}

// Lookup returns the plan with the given ID.
func (c *Catalog) Lookup(id string) (Plan, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Plans returns the plans in file order.
func (c *Catalog) Plans() []Plan {
	return append([]Plan(nil), c.plans...)
}
