package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var (
	ErrPlanNotFound      = errors.New("plan not found")
	ErrRegionNotFound    = errors.New("region not found")
	ErrRegionUnavailable = errors.New("region not available")
)

type document struct {
	Plans   []models.Plan   `yaml:"plans" validate:"required,min=1,dive"`
	Regions []models.Region `yaml:"regions" validate:"required,min=1,dive"`
}

// Catalog is the read-only list of plans and regions offered in the store.
type Catalog struct {
	plans   []models.Plan
	regions []models.Region
}

// Load reads the catalog from path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := validator.New().Struct(doc); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	seen := make(map[string]bool)
	for _, p := range doc.Plans {
		if seen["plan:"+p.ID] {
			return nil, fmt.Errorf("duplicate plan %q", p.ID)
		}
		seen["plan:"+p.ID] = true
	}
	for _, r := range doc.Regions {
		if seen["region:"+r.Code] {
			return nil, fmt.Errorf("duplicate region %q", r.Code)
		}
		seen["region:"+r.Code] = true
	}

	sort.SliceStable(doc.Plans, func(i, j int) bool { return doc.Plans[i].Amount < doc.Plans[j].Amount })
	sort.SliceStable(doc.Regions, func(i, j int) bool { return doc.Regions[i].Name < doc.Regions[j].Name })
	return &Catalog{plans: doc.Plans, regions: doc.Regions}, nil
}

// Plans returns all plans ordered by price.
func (c *Catalog) Plans() []models.Plan {
	return append([]models.Plan(nil), c.plans...)
}

// GetPlan looks a plan up by id.
func (c *Catalog) GetPlan(id string) (models.Plan, error) {
	for _, p := range c.plans {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
}

// GetAvailableRegions returns regions currently accepting servers.
func (c *Catalog) GetAvailableRegions() []models.Region {
	out := []models.Region{}
	for _, r := range c.regions {
		if r.Available {
			out = append(out, r)
		}
	}
	return out
}

// GetRegionByCode looks a region up by code.
func (c *Catalog) GetRegionByCode(code string) (models.Region, error) {
	for _, r := range c.regions {
		if r.Code == code {
			return r, nil
		}
	}
	return models.Region{}, fmt.Errorf("%w: %s", ErrRegionNotFound, code)
}

// ValidateRegion reports whether servers can be placed in code.
func (c *Catalog) ValidateRegion(code string) error {
	r, err := c.GetRegionByCode(code)
	if err != nil {
		return err
	}
	if !r.Available {
		return fmt.Errorf("%w: %s", ErrRegionUnavailable, code)
	}
	return nil
}
