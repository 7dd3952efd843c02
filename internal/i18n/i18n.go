// Package i18n loads YAML translation catalogs and resolves dot-separated keys per language.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embedded embed.FS

// Translator resolves localized strings using dot-separated keys.
type Translator interface {
	T(key string) string
	Tf(key string, args ...any) string
	Lang() string
}

// catalog maps language -> flattened key -> text.
type catalog map[string]map[string]string

// Manager holds the catalogs of every language. A source listed later overrides keys of the
// earlier ones, so an external directory can patch the built-in texts.
type Manager struct {
	defaultLang string
	sources     []fs.FS

	mu      sync.RWMutex
	current catalog
}

// Load uses the built-in catalogs, overlaid by the YAML files in dir when dir is set.
func Load(defaultLang, dir string) (*Manager, error) {
	builtin, err := fs.Sub(embedded, "locales")
	if err != nil {
		return nil, fmt.Errorf("i18n: open embedded catalogs: %w", err)
	}
	sources := []fs.FS{builtin}
	if dir != "" {
		sources = append(sources, os.DirFS(dir))
	}
	return NewManager(defaultLang, sources...)
}

func NewManager(defaultLang string, sources ...fs.FS) (*Manager, error) {
	lang := normalize(defaultLang)
	if lang == "" {
		lang = "en"
	}
	m := &Manager{defaultLang: lang, sources: sources}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload parses every source again. On failure the catalogs in use are kept.
func (m *Manager) Reload() error {
	next := make(catalog)
	for _, src := range m.sources {
		if err := next.merge(src); err != nil {
			return err
		}
	}
	if len(next[m.defaultLang]) == 0 {
		return fmt.Errorf("i18n: default language %q is missing", m.defaultLang)
	}

	m.mu.Lock()
	m.current = next
	m.mu.Unlock()
	return nil
}

// Translator returns the translator of lang. Regional tags fall back to their base language
// ("pt-BR" to "pt") and unknown languages to the default one.
func (m *Manager) Translator(lang string) Translator {
	m.mu.RLock()
	c := m.current
	m.mu.RUnlock()

	norm := normalize(lang)
	if _, ok := c[norm]; !ok {
		norm = m.defaultLang
	}
	return translator{lang: norm, texts: c[norm], fallback: c[m.defaultLang]}
}

// Text translates key for lang.
func (m *Manager) Text(key, lang string) string {
	return m.Translator(lang).T(key)
}

// Languages lists the loaded languages in order.
func (m *Manager) Languages() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.current))
	for lang := range m.current {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

func normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if base, _, ok := strings.Cut(strings.ReplaceAll(lang, "_", "-"), "-"); ok {
		return base
	}
	return lang
}

type translator struct {
	lang     string
	texts    map[string]string
	fallback map[string]string
}

func (t translator) Lang() string {
	return t.lang
}

// T returns the text of key, the default language's text, or the key itself.
func (t translator) T(key string) string {
	key = strings.TrimSpace(key)
	if v, ok := t.texts[key]; ok {
		return v
	}
	if v, ok := t.fallback[key]; ok {
		return v
	}
	return key
}

func (t translator) Tf(key string, args ...any) string {
	if len(args) == 0 {
		return t.T(key)
	}
	return fmt.Sprintf(t.T(key), args...)
}

func (c catalog) merge(src fs.FS) error {
	entries, err := fs.ReadDir(src, ".")
	if err != nil {
		return fmt.Errorf("i18n: read catalogs: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		data, err := fs.ReadFile(src, entry.Name())
		if err != nil {
			return fmt.Errorf("i18n: read %s: %w", entry.Name(), err)
		}

		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("i18n: parse %s: %w", entry.Name(), err)
		}
		if len(doc.Content) == 0 {
			continue
		}
		root := doc.Content[0]
		if root.Kind != yaml.MappingNode {
			return fmt.Errorf("i18n: %s: top level must map languages to texts", entry.Name())
		}

		for i := 0; i+1 < len(root.Content); i += 2 {
			lang := normalize(root.Content[i].Value)
			if lang == "" {
				continue
			}
			if c[lang] == nil {
				c[lang] = make(map[string]string)
			}
			flatten("", root.Content[i+1], c[lang])
		}
	}
	return nil
}

// flatten stores every scalar under its dotted path. Sequences are ignored.
func flatten(prefix string, n *yaml.Node, out map[string]string) {
	switch n.Kind {
	case yaml.ScalarNode:
		if prefix != "" {
			out[prefix] = n.Value
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := strings.TrimSpace(n.Content[i].Value)
			if key == "" {
				continue
			}
			if prefix != "" {
				key = prefix + "." + key
			}
			flatten(key, n.Content[i+1], out)
		}
	case yaml.AliasNode:
		if n.Alias != nil {
			flatten(prefix, n.Alias, out)
		}
	}
}

func isYAML(name string) bool {
	name = strings.ToLower(name)
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
