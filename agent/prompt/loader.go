package prompt

import (
	"embed"
	"fmt"
	"path"
	"strings"

	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
	"gopkg.in/yaml.v3"
)

//go:embed template
var templates embed.FS

// SearchSpec describes the name search action a domain exposes.
type SearchSpec struct {
	Tool        string `yaml:"tool"`
	Model       string `yaml:"model"`
	Description string `yaml:"description"`
}

// DomainSpec is one entry of the domain catalog.
type DomainSpec struct {
	Name     contractx.Domain `yaml:"name"`
	Prompt   string           `yaml:"prompt"`
	Anchor   string           `yaml:"anchor"`
	Keywords []string         `yaml:"keywords"`
	Search   SearchSpec       `yaml:"search"`
}

// Catalog lists the supported domains in classification order.
type Catalog struct {
	Default contractx.Domain `yaml:"default"`
	Domains []DomainSpec     `yaml:"domains"`
}

// PromptSet holds loaded prompt content keyed by domain.
type PromptSet map[contractx.Domain]string

func (p PromptSet) For(domain contractx.Domain) (string, error) {
	text := strings.TrimSpace(p[domain])
	if text == "" {
		return "", fmt.Errorf("%w: domain=%s", contractx.ErrPromptMissing, domain)
	}
	return text, nil
}

// LoadCatalog parses the embedded domain catalog.
func LoadCatalog() (Catalog, error) {
	raw, err := templates.ReadFile("template/domains.yaml")
	if err != nil {
		return Catalog{}, fmt.Errorf("read domain catalog: %w", err)
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Catalog{}, fmt.Errorf("%w: decode domain catalog: %v", contractx.ErrValidation, err)
	}
	c.Default = contractx.ParseDomain(string(c.Default))
	for i := range c.Domains {
		c.Domains[i].Name = contractx.ParseDomain(string(c.Domains[i].Name))
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

func (c Catalog) Validate() error {
	if len(c.Domains) == 0 {
		return fmt.Errorf("%w: catalog has no domains", contractx.ErrValidation)
	}
	seen := make(map[contractx.Domain]struct{}, len(c.Domains))
	for _, d := range c.Domains {
		if d.Name == "" {
			return fmt.Errorf("%w: catalog domain without name", contractx.ErrValidation)
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("%w: duplicate domain %q", contractx.ErrValidation, d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	if _, ok := seen[c.Default]; !ok {
		return fmt.Errorf("%w: default domain %q is not in the catalog", contractx.ErrValidation, c.Default)
	}
	return nil
}

// WithDefault returns a copy of the catalog with another tie-break domain.
func (c Catalog) WithDefault(domain contractx.Domain) (Catalog, error) {
	if domain == "" {
		return c, nil
	}
	c.Default = domain
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

func (c Catalog) Lookup(domain contractx.Domain) (DomainSpec, bool) {
	for _, d := range c.Domains {
		if d.Name == domain {
			return d, true
		}
	}
	return DomainSpec{}, false
}

func (c Catalog) Names() []contractx.Domain {
	out := make([]contractx.Domain, 0, len(c.Domains))
	for _, d := range c.Domains {
		out = append(out, d.Name)
	}
	return out
}

// LoadPromptSet reads the system prompt of every catalog domain.
func LoadPromptSet(c Catalog) (PromptSet, error) {
	set := make(PromptSet, len(c.Domains))
	for _, d := range c.Domains {
		raw, err := templates.ReadFile(path.Join("template", d.Prompt))
		if err != nil {
			return nil, fmt.Errorf("%w: domain=%s file=%s: %v", contractx.ErrPromptMissing, d.Name, d.Prompt, err)
		}
		set[d.Name] = strings.TrimSpace(string(raw))
	}
	return set, nil
}
