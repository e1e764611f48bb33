// Package model defines the persisted entities the stores (pkg/store) read
// and write, and the in-memory StrategyMetadata record the registry
// (pkg/strategy) holds. JSON blob fields are modeled as JSONMap/JSONList so
// they round-trip through the TEXT columns SQLite stores them in without a
// separate DTO layer.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONMap is a JSON object column stored as TEXT. A NULL or invalid column
// value decodes to an empty, non-nil map rather than failing the scan.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]interface{}(m))
	if err != nil {
		return nil, fmt.Errorf("model: marshal JSONMap: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src interface{}) error {
	*m = JSONMap{}
	if src == nil {
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("model: cannot scan %T into JSONMap", src)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, m); err != nil {
		// Decoding an invalid JSON blob never fails the read; see §4.7.
		*m = JSONMap{}
	}
	return nil
}

// JSONList is a JSON array-of-strings column stored as TEXT.
type JSONList []string

func (l JSONList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("model: marshal JSONList: %w", err)
	}
	return string(b), nil
}

func (l *JSONList) Scan(src interface{}) error {
	*l = JSONList{}
	if src == nil {
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("model: cannot scan %T into JSONList", src)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, l); err != nil {
		*l = JSONList{}
	}
	return nil
}

// StrategyCategory is the closed taxonomy a StrategyMetadata.Category must
// belong to.
type StrategyCategory string

const (
	CategoryCrypto    StrategyCategory = "crypto"
	CategoryNews      StrategyCategory = "news"
	CategorySocial    StrategyCategory = "social"
	CategoryProduct   StrategyCategory = "product"
	CategoryFinancial StrategyCategory = "financial"
	CategoryAcademic  StrategyCategory = "academic"
	CategoryNFT       StrategyCategory = "nft"
	CategoryGeneral   StrategyCategory = "general"
	CategoryComposite StrategyCategory = "composite"
	CategoryWorkflow  StrategyCategory = "workflow"
	CategoryCustom    StrategyCategory = "custom"
)

var validCategories = map[StrategyCategory]bool{
	CategoryCrypto: true, CategoryNews: true, CategorySocial: true,
	CategoryProduct: true, CategoryFinancial: true, CategoryAcademic: true,
	CategoryNFT: true, CategoryGeneral: true, CategoryComposite: true,
	CategoryWorkflow: true, CategoryCustom: true,
}

// ValidCategory reports whether c belongs to the closed taxonomy.
func ValidCategory(c StrategyCategory) bool {
	return validCategories[c]
}

// StrategyMetadata is the registry record the Strategy Registry (pkg/strategy)
// holds for a discoverable extraction strategy. It is never persisted; it is
// rebuilt on service start.
type StrategyMetadata struct {
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Category     StrategyCategory `json:"category"`
	OutputSchema JSONMap          `json:"output_schema"`
	ConfigSchema JSONMap          `json:"config_schema"`
}

// Validate checks StrategyMetadata's invariants: a non-empty unique name
// (uniqueness is enforced by the registry, not here) and a category drawn
// from the closed taxonomy.
func (m *StrategyMetadata) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("model: strategy metadata name cannot be empty")
	}
	if m.Category != "" && !ValidCategory(m.Category) {
		return fmt.Errorf("model: strategy category %q is not in the closed taxonomy", m.Category)
	}
	return nil
}

// URLConfiguration is the persisted business identity of a content source.
type URLConfiguration struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	URL                string    `json:"url"`
	ProfileType        string    `json:"profile_type"`
	Category           string    `json:"category"`
	BusinessPriority   int       `json:"business_priority"`
	IsActive           bool      `json:"is_active"`
	KeyDataPoints      JSONList  `json:"key_data_points"`
	TargetData         JSONMap   `json:"target_data"`
	CostAnalysis       JSONMap   `json:"cost_analysis"`
	Metadata           JSONMap   `json:"metadata"`
	ScrapingDifficulty string    `json:"scraping_difficulty"`
	APIPricing         string    `json:"api_pricing"`
	Recommendation     string    `json:"recommendation"`
	Rationale          string    `json:"rationale"`
	BusinessValue      string    `json:"business_value"`
	ComplianceNotes    string    `json:"compliance_notes"`
	HasOfficialAPI     bool      `json:"has_official_api"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// SetDefaults fills zero-valued optional fields before the first persist.
func (c *URLConfiguration) SetDefaults() {
	if c.BusinessPriority == 0 {
		c.BusinessPriority = 5
	}
	if c.KeyDataPoints == nil {
		c.KeyDataPoints = JSONList{}
	}
	if c.TargetData == nil {
		c.TargetData = JSONMap{}
	}
	if c.CostAnalysis == nil {
		c.CostAnalysis = JSONMap{}
	}
	if c.Metadata == nil {
		c.Metadata = JSONMap{}
	}
}

// Validate checks URLConfiguration's invariants ahead of a create or update.
func (c *URLConfiguration) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("model: url cannot be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("model: name cannot be empty")
	}
	if c.BusinessPriority < 1 || c.BusinessPriority > 10 {
		return fmt.Errorf("model: business_priority must be in [1,10], got %d", c.BusinessPriority)
	}
	return nil
}

// URLMapping is the persisted technical binding from a URLConfiguration to
// one or more extraction strategies plus dispatch knobs.
type URLMapping struct {
	ID              string    `json:"id"`
	URLConfigID     string    `json:"url_config_id"`
	URL             string    `json:"url"`
	ExtractorIDs    JSONList  `json:"extractor_ids"`
	RateLimit       int       `json:"rate_limit"`
	Priority        int       `json:"priority"`
	CrawlerSettings JSONMap   `json:"crawler_settings"`
	ValidationRules JSONMap   `json:"validation_rules"`
	Metadata        JSONMap   `json:"metadata"`
	IsActive        bool      `json:"is_active"`
	Tags            JSONList  `json:"tags"`
	Notes           string    `json:"notes"`
	Category        string    `json:"category"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SetDefaults fills zero-valued optional fields before the first persist.
func (m *URLMapping) SetDefaults() {
	if m.RateLimit == 0 {
		m.RateLimit = 60
	}
	if m.Priority == 0 {
		m.Priority = 1
	}
	if m.CrawlerSettings == nil {
		m.CrawlerSettings = JSONMap{}
	}
	if m.ValidationRules == nil {
		m.ValidationRules = JSONMap{}
	}
	if m.Metadata == nil {
		m.Metadata = JSONMap{}
	}
	if m.Tags == nil {
		m.Tags = JSONList{}
	}
	if m.ExtractorIDs == nil {
		m.ExtractorIDs = JSONList{}
	}
}

// Validate checks URLMapping's invariants ahead of a create or update.
func (m *URLMapping) Validate() error {
	if m.URLConfigID == "" {
		return fmt.Errorf("model: url_config_id cannot be empty")
	}
	if m.URL == "" {
		return fmt.Errorf("model: url cannot be empty")
	}
	if len(m.ExtractorIDs) == 0 {
		return fmt.Errorf("model: extractor_ids cannot be empty")
	}
	if m.RateLimit < 1 {
		return fmt.Errorf("model: rate_limit must be >= 1, got %d", m.RateLimit)
	}
	if m.Priority < 1 || m.Priority > 10 {
		return fmt.Errorf("model: priority must be in [1,10], got %d", m.Priority)
	}
	return nil
}
