// Package cleaning holds the canned answers of the cleaning company concierge
// and the functions that serve them.
package cleaning

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"text/template"
	"unicode"

	"github.com/Masterminds/sprig/v3"
)

var (
	ErrEntryKeyEmpty   = errors.New("catalog entry key is empty")
	ErrDuplicatePhrase = errors.New("phrase already mapped")
	ErrDuplicateKey    = errors.New("entry key already used")
)

// Entry is one canned response. Answer is returned as-is unless Template is
// set, in which case Template is rendered with Fields.
type Entry struct {
	Key      string            `json:"key"`
	Function string            `json:"function"`
	Phrases  []string          `json:"phrases"`
	Answer   any               `json:"answer,omitempty"`
	Template string            `json:"template,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

func (e *Entry) render() (any, error) {
	if e.Template == "" {
		return e.Answer, nil
	}
	tmpl, err := template.New(e.Key).Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(e.Template)
	if err != nil {
		return nil, fmt.Errorf("entry `%s`: parse template: %w", e.Key, err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, e.Fields); err != nil {
		return nil, fmt.Errorf("entry `%s`: execute template: %w", e.Key, err)
	}
	return sb.String(), nil
}

// Catalog maps normalized phrases to entries, per function.
type Catalog struct {
	entries []*Entry
	index   map[string]map[string]*Entry
	answers map[string]any
}

func NewCatalog(entries ...Entry) (*Catalog, error) {
	c := &Catalog{
		index:   make(map[string]map[string]*Entry),
		answers: make(map[string]any),
	}
	for _, e := range entries {
		if err := c.Add(e); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add indexes e. On error the catalog is left unchanged.
func (c *Catalog) Add(e Entry) error {
	if e.Key == "" {
		return ErrEntryKeyEmpty
	}
	if _, ok := c.answers[e.Key]; ok {
		return fmt.Errorf("%w: `%s`", ErrDuplicateKey, e.Key)
	}
	entry := &e
	entry.Phrases = append([]string{}, e.Phrases...)
	entry.Fields = maps.Clone(e.Fields)
	answer, err := entry.render()
	if err != nil {
		return err
	}
	phrases := maps.Clone(c.index[e.Function])
	if phrases == nil {
		phrases = make(map[string]*Entry)
	}
	for _, p := range entry.Phrases {
		n := Normalize(p)
		if other, ok := phrases[n]; ok {
			return fmt.Errorf("%w: `%s` in `%s` and `%s`", ErrDuplicatePhrase, p, other.Key, e.Key)
		}
		phrases[n] = entry
	}
	c.index[e.Function] = phrases
	c.answers[e.Key] = answer
	c.entries = append(c.entries, entry)
	return nil
}

// Lookup returns the canned answer for content as seen by function. A miss
// reports false.
func (c *Catalog) Lookup(function, content string) (any, bool) {
	phrases, ok := c.index[function]
	if !ok {
		return nil, false
	}
	e, ok := phrases[Normalize(content)]
	if !ok {
		return nil, false
	}
	return c.answers[e.Key], true
}

// Keys returns the intent keys mapped for function, in insertion order.
func (c *Catalog) Keys(function string) []string {
	var keys []string
	for _, e := range c.entries {
		if e.Function == function {
			keys = append(keys, e.Key)
		}
	}
	return keys
}

func (c *Catalog) Entries() []Entry {
	ret := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		ret = append(ret, *e)
	}
	return ret
}

// Normalize lower-cases s, collapses whitespace, unifies apostrophes and drops
// trailing punctuation.
func Normalize(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(s)
	return strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}
