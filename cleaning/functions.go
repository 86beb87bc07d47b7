package cleaning

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mashiike/concierge"
)

type Query struct {
	Content string `json:"content" jsonschema:"description=User question"`
}

var descriptions = map[string]string{
	FunctionAnswerUserQuery:       "Return hardcoded array to answer only 1 user question: 'What services do you provide?'",
	FunctionConnectToHumanAgent:   "get connect to human agent if a customer is asking for an unknown service which the company can't provide",
	FunctionAvailabilityAndPrices: "retrieving company specific information from external sources",
}

// NewFunctions builds the three concierge functions backed by catalog.
func NewFunctions(catalog *Catalog) ([]concierge.Function, error) {
	names := []string{
		FunctionAnswerUserQuery,
		FunctionConnectToHumanAgent,
		FunctionAvailabilityAndPrices,
	}
	fns := make([]concierge.Function, 0, len(names))
	for _, name := range names {
		fn, err := concierge.NewFunction(name, descriptions[name], lookupFunc(catalog, name))
		if err != nil {
			return nil, fmt.Errorf("function `%s`: %w", name, err)
		}
		fns = append(fns, fn)
	}
	return fns, nil
}

func lookupFunc(catalog *Catalog, name string) func(context.Context, Query) (any, error) {
	return func(ctx context.Context, q Query) (any, error) {
		answer, ok := catalog.Lookup(name, q.Content)
		if !ok {
			slog.DebugContext(ctx, "no canned answer", "function", name, "content", q.Content)
			return nil, nil
		}
		return answer, nil
	}
}

// Register adds the concierge functions to reg.
func Register(reg *concierge.Registry, catalog *Catalog) error {
	fns, err := NewFunctions(catalog)
	if err != nil {
		return err
	}
	for _, fn := range fns {
		if err := reg.Register(fn); err != nil {
			return err
		}
	}
	return nil
}

// CatalogFromConfig reads the optional `catalog` section. Entries there are
// added after the defaults unless `replace_defaults` is true.
func CatalogFromConfig(cfg *concierge.Config) (*Catalog, error) {
	var section struct {
		Catalog struct {
			ReplaceDefaults bool    `json:"replace_defaults"`
			Entries         []Entry `json:"entries"`
		} `json:"catalog"`
	}
	if err := cfg.Decode(&section); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	var entries []Entry
	if !section.Catalog.ReplaceDefaults {
		entries = DefaultEntries()
	}
	entries = append(entries, section.Catalog.Entries...)
	return NewCatalog(entries...)
}
