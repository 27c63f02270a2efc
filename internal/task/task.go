// Package task loads and validates the declarative task files that drive a
// run: what to fetch, what shape the records have, and how to advance.
package task

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"gleaner/internal/extract"
	"gleaner/internal/paginate"
	"gleaner/internal/schema"
)

// Duration parses human-readable durations ("90s", "2m") from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Field declares one record field: its schema constraints plus, for the
// structural strategy, where to find it.
type Field struct {
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Optional  bool     `yaml:"optional"`
	MinLength int      `yaml:"min_length"`
	MaxLength int      `yaml:"max_length"`
	URLShaped bool     `yaml:"url_shaped"`
	Min       *float64 `yaml:"min"`
	Max       *float64 `yaml:"max"`
	Normalize string   `yaml:"normalize"`

	Selectors []string `yaml:"selectors"`
	Attr      string   `yaml:"attr"`
	Pattern   string   `yaml:"pattern"`
}

// Service configures the external natural-language extraction service.
type Service struct {
	Endpoint    string   `yaml:"endpoint"`
	APIKey      string   `yaml:"api_key"`
	Model       string   `yaml:"model"`
	Instruction string   `yaml:"instruction"`
	Prepare     string   `yaml:"prepare"`
	Timeout     Duration `yaml:"timeout"`
}

// Task is one complete scraping declaration. Immutable after load.
type Task struct {
	URL             string   `yaml:"url"`
	FallbackURLs    []string `yaml:"fallback_urls"`
	Strategy        string   `yaml:"strategy"`
	Budget          Duration `yaml:"budget"`
	MaxRecords      int      `yaml:"max_records"`
	EmitEvery       int      `yaml:"emit_every"`
	IdentityKey     []string `yaml:"identity_key"`
	EmptyBatchLimit int      `yaml:"empty_batch_limit"`
	Pagination      []string `yaml:"pagination"`
	NextSelector    string   `yaml:"next_selector"`
	PageParam       string   `yaml:"page_param"`
	Containers      []string `yaml:"containers"`
	DetailLinkField string   `yaml:"detail_link_field"`
	MaxDetailVisits int      `yaml:"max_detail_visits"`
	Fields          []Field  `yaml:"fields"`
	Service         Service  `yaml:"service"`
}

// Load reads a task file, applies defaults, and validates it.
func Load(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a task declaration from YAML bytes.
func Parse(data []byte) (*Task, error) {
	var t Task
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse task file: %w", err)
	}
	t.applyDefaults()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Task) applyDefaults() {
	if t.Strategy == "" {
		t.Strategy = "structural"
	}
	if t.Budget <= 0 {
		t.Budget = Duration(5 * time.Minute)
	}
	if t.EmitEvery == 0 {
		t.EmitEvery = 10
	}
	if t.EmptyBatchLimit <= 0 {
		t.EmptyBatchLimit = 3
	}
	if t.MaxDetailVisits == 0 {
		t.MaxDetailVisits = 20
	}
	if len(t.Pagination) == 0 {
		t.Pagination = []string{"click_next", "scroll", "url_increment"}
	}
	if len(t.IdentityKey) == 0 && len(t.Fields) > 0 {
		t.IdentityKey = []string{t.Fields[0].Name}
	}
}

// Validate rejects declarations that cannot drive a run.
func (t *Task) Validate() error {
	if t.URL == "" {
		return fmt.Errorf("task requires a url")
	}
	if len(t.Fields) == 0 {
		return fmt.Errorf("task requires at least one field")
	}

	declared := map[string]bool{}
	for _, f := range t.Fields {
		if f.Name == "" {
			return fmt.Errorf("field without a name")
		}
		if declared[f.Name] {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		declared[f.Name] = true
		switch schema.FieldType(f.Type) {
		case schema.TypeString, schema.TypeNumber, schema.TypeBoolean, schema.TypeStringList:
		case "":
			return fmt.Errorf("field %q has no type", f.Name)
		default:
			return fmt.Errorf("field %q has unknown type %q", f.Name, f.Type)
		}
	}

	for _, key := range t.IdentityKey {
		if !declared[key] {
			return fmt.Errorf("identity key field %q is not declared", key)
		}
	}

	switch t.Strategy {
	case "structural":
		if len(t.Containers) == 0 {
			return fmt.Errorf("structural strategy requires container selectors")
		}
	case "semantic":
		if t.Service.Endpoint == "" {
			return fmt.Errorf("semantic strategy requires a service endpoint")
		}
		if t.Service.Instruction == "" {
			return fmt.Errorf("semantic strategy requires an instruction")
		}
	default:
		return fmt.Errorf("unknown strategy %q", t.Strategy)
	}

	if t.DetailLinkField != "" && !declared[t.DetailLinkField] {
		return fmt.Errorf("detail link field %q is not declared", t.DetailLinkField)
	}

	for _, p := range t.Pagination {
		switch paginate.Strategy(p) {
		case paginate.ClickNext, paginate.Scroll, paginate.URLIncrement:
		default:
			return fmt.Errorf("unknown pagination strategy %q", p)
		}
	}
	return nil
}

// Target builds the validation schema from the declaration.
func (t *Task) Target() schema.Target {
	fields := make([]schema.FieldSpec, 0, len(t.Fields))
	for _, f := range t.Fields {
		fields = append(fields, schema.FieldSpec{
			Name:      f.Name,
			Type:      schema.FieldType(f.Type),
			Optional:  f.Optional,
			MinLength: f.MinLength,
			MaxLength: f.MaxLength,
			URLShaped: f.URLShaped,
			Min:       f.Min,
			Max:       f.Max,
			Normalize: f.Normalize,
		})
	}
	return schema.Target{Fields: fields, Identity: t.IdentityKey}
}

// ExtractOptions builds the strategy configuration from the declaration.
func (t *Task) ExtractOptions() extract.Options {
	fields := make(map[string]extract.FieldRules, len(t.Fields))
	for _, f := range t.Fields {
		if len(f.Selectors) == 0 && f.Pattern == "" {
			continue
		}
		fields[f.Name] = extract.FieldRules{
			Selectors: f.Selectors,
			Attr:      f.Attr,
			Pattern:   f.Pattern,
		}
	}
	return extract.Options{
		Containers:      t.Containers,
		Fields:          fields,
		DetailLinkField: t.DetailLinkField,
		MaxDetailVisits: t.MaxDetailVisits,
		Service: extract.ServiceConfig{
			Endpoint:    t.Service.Endpoint,
			APIKey:      t.Service.APIKey,
			Model:       t.Service.Model,
			Instruction: t.Service.Instruction,
			Prepare:     t.Service.Prepare,
			Timeout:     t.Service.Timeout.Std(),
		},
	}
}

// PaginateConfig builds the pagination controller configuration.
func (t *Task) PaginateConfig() paginate.Config {
	strategies := make([]paginate.Strategy, 0, len(t.Pagination))
	for _, p := range t.Pagination {
		strategies = append(strategies, paginate.Strategy(p))
	}
	return paginate.Config{
		Strategies:      strategies,
		NextSelector:    t.NextSelector,
		PageParam:       t.PageParam,
		EmptyBatchLimit: t.EmptyBatchLimit,
	}
}

// ColumnOrder returns field names in declaration order, for CSV sinks.
func (t *Task) ColumnOrder() []string {
	columns := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		columns = append(columns, f.Name)
	}
	return columns
}
