package config

import (
	"fmt"
	"os"

	"rezervacia/internal/models"

	"gopkg.in/yaml.v3"
)

// Catalog is the seed data for services and staff.
type Catalog struct {
	Services []models.Service     `yaml:"services"`
	Staff    []models.StaffMember `yaml:"staff"`
}

func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	if err := ValidateCatalog(&catalog); err != nil {
		return nil, fmt.Errorf("catalog validation failed: %w", err)
	}
	return &catalog, nil
}

func ValidateCatalog(c *Catalog) error {
	serviceIDs := make(map[string]bool)
	for _, s := range c.Services {
		if s.ID == "" {
			return fmt.Errorf("service '%s' has empty ID", s.Name)
		}
		if serviceIDs[s.ID] {
			return fmt.Errorf("duplicate service ID found: %s", s.ID)
		}
		if s.Duration <= 0 {
			return fmt.Errorf("service %s has invalid duration %d", s.ID, s.Duration)
		}
		serviceIDs[s.ID] = true
	}

	staffIDs := make(map[string]bool)
	for _, m := range c.Staff {
		if m.ID == "" {
			return fmt.Errorf("staff member '%s' has empty ID", m.Name)
		}
		if staffIDs[m.ID] {
			return fmt.Errorf("duplicate staff ID found: %s", m.ID)
		}
		staffIDs[m.ID] = true
	}
	return nil
}
