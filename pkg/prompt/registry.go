// Package prompt holds the prompt registry. Prompt wording is data:
// every template can be overridden at runtime without recompiling.
package prompt

import (
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// Registry maps prompt names to templates. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewRegistry returns a registry preloaded with the built-in prompts.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string]*template.Template)}
	for name, text := range builtins {
		r.templates[name] = template.Must(template.New(name).Parse(text))
	}
	return r
}

// Override replaces (or adds) a prompt template at runtime.
func (r *Registry) Override(name, text string) error {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return fmt.Errorf("parse prompt %q: %w", name, err)
	}
	r.mu.Lock()
	r.templates[name] = tmpl
	r.mu.Unlock()
	return nil
}

// Render executes the named template with the given data.
func (r *Registry) Render(name string, data any) (string, error) {
	r.mu.RLock()
	tmpl, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return sb.String(), nil
}

// Names returns the registered prompt names (unordered).
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	return names
}
