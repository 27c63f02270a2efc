package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gleaner/internal/driver"
	"gleaner/internal/schema"
)

// Strategy produces candidate records from a loaded page. Implementations
// must not fail on missing fields; absent fields are left out of the
// candidate and judged by validation.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, page driver.Page, target schema.Target) ([]schema.CandidateRecord, error)
}

// FieldRules tells the structural strategy where to look for one field: an
// ordered selector chain (first non-empty match wins), the attribute to read
// instead of text, and a regex fallback applied to the container's full text.
type FieldRules struct {
	Selectors []string
	Attr      string
	Pattern   string
}

// Options carries per-task strategy configuration.
type Options struct {
	// Structural strategy.
	Containers      []string
	Fields          map[string]FieldRules
	DetailLinkField string
	MaxDetailVisits int

	// Semantic strategy.
	Service ServiceConfig

	// Gate, when set, is consulted before expensive side trips such as
	// detail-page visits. Returning false skips the trip without error.
	Gate func() bool
}

// ServiceConfig points at the external natural-language extraction service.
type ServiceConfig struct {
	Endpoint    string
	APIKey      string
	Model       string
	Instruction string
	Prepare     string
	Timeout     time.Duration
}

type factory func(opts Options) (Strategy, error)

var registry = map[string]factory{}

func register(name string, f factory) {
	registry[strings.ToLower(name)] = f
}

// New builds the named strategy from the given options.
func New(name string, opts Options) (Strategy, error) {
	f, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown extraction strategy: %s", name)
	}
	return f(opts)
}

func (o Options) allowed() bool {
	return o.Gate == nil || o.Gate()
}
