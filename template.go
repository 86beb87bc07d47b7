package concierge

import (
	"fmt"
	"maps"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// PromptData is what a system prompt template sees.
type PromptData struct {
	Functions []Descriptor
	Sentinel  string
}

var builtinTemplateFuncs = template.FuncMap{
	"functionNames": func(descs []Descriptor) []string {
		names := make([]string, 0, len(descs))
		for _, d := range descs {
			names = append(names, d.Name)
		}
		return names
	},
}

func TemplateFuncs() template.FuncMap {
	ret := sprig.TxtFuncMap()
	maps.Copy(ret, builtinTemplateFuncs)
	return ret
}

// RenderSystemPrompt executes text as a text/template with sprig functions.
// Surrounding whitespace is trimmed from the output.
func RenderSystemPrompt(text string, data PromptData) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	tmpl, err := template.New("system").Funcs(TemplateFuncs()).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}
