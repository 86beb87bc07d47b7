package jsonutil

import (
	"math/rand/v2"
	"slices"
)

// SampleGenerator builds example values that satisfy a JSON Schema. Enum,
// example and default keywords win over generated values.
type SampleGenerator struct {
	r *rand.Rand
}

func NewSampleGenerator(r *rand.Rand) *SampleGenerator {
	return &SampleGenerator{r: r}
}

var DefaultSampleGenerator = NewSampleGenerator(nil)

func (g *SampleGenerator) intN(n int) int {
	if g.r == nil {
		return rand.IntN(n)
	}
	return g.r.IntN(n)
}

func (g *SampleGenerator) float64() float64 {
	if g.r == nil {
		return rand.Float64()
	}
	return g.r.Float64()
}

func (g *SampleGenerator) Generate(schema map[string]any) any {
	if enumValues, ok := schema["enum"].([]any); ok && len(enumValues) > 0 {
		return enumValues[g.intN(len(enumValues))]
	}
	if examples, ok := schema["examples"].([]any); ok && len(examples) > 0 {
		return examples[0]
	}
	if example, ok := schema["example"]; ok {
		return example
	}
	if defaultValue, ok := schema["default"]; ok {
		return defaultValue
	}
	schemaType, _ := schema["type"].(string)
	switch schemaType {
	case "string":
		return "example_string"
	case "number":
		return g.float64() * 100
	case "integer":
		return g.intN(100)
	case "boolean":
		return g.intN(2) == 1
	case "array":
		items, ok := schema["items"].(map[string]any)
		if !ok {
			return []any{}
		}
		return []any{g.Generate(items)}
	case "object":
		data := make(map[string]any)
		properties, ok := schema["properties"].(map[string]any)
		if !ok {
			return data
		}
		keys := make([]string, 0, len(properties))
		for k := range properties {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			prop, ok := properties[k].(map[string]any)
			if !ok {
				continue
			}
			data[k] = g.Generate(prop)
		}
		return data
	default:
		return nil
	}
}
