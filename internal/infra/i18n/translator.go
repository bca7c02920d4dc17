package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"dvsafe-service/internal/domain/model"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

// DefaultRegion is used when a caller asks for an unknown region.
const DefaultRegion = "AU"

type Translator struct {
	translations map[string]string
}

// NewTranslator loads locales/<langCode>.yaml from fsys.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	filePath := path.Join("locales", fmt.Sprintf("%s.yaml", langCode))

	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	return newTranslatorFromBytes(data)
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	if translations == nil {
		translations = map[string]string{}
	}
	return &Translator{translations: translations}, nil
}

// T returns the formatted text for key, or the key itself when missing.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

// Series returns the values of prefix_1, prefix_2, ... up to the first gap.
func (t *Translator) Series(prefix string) []string {
	var out []string
	for i := 1; ; i++ {
		v, ok := t.translations[fmt.Sprintf("%s_%d", prefix, i)]
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

// NeutralNotifications pairs the neutral title and message series.
func (t *Translator) NeutralNotifications() []model.Notification {
	titles := t.Series("notify_neutral_title")
	messages := t.Series("notify_neutral_message")
	n := len(titles)
	if len(messages) < n {
		n = len(messages)
	}
	out := make([]model.Notification, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.Notification{Title: titles[i], Message: messages[i]})
	}
	return out
}

// ResourceCatalog is the hotline directory keyed by upper-case region code.
type ResourceCatalog struct {
	regions map[string][]model.SupportResource
}

func LoadResourceCatalog(fsys fs.FS) (*ResourceCatalog, error) {
	data, err := fs.ReadFile(fsys, path.Join("locales", "resources.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to read resource catalog: %w", err)
	}
	return newResourceCatalogFromBytes(data)
}

func newResourceCatalogFromBytes(data []byte) (*ResourceCatalog, error) {
	var regions map[string][]model.SupportResource
	if err := yaml.Unmarshal(data, &regions); err != nil {
		return nil, fmt.Errorf("failed to parse resource catalog: %w", err)
	}
	norm := make(map[string][]model.SupportResource, len(regions))
	for k, v := range regions {
		norm[strings.ToUpper(k)] = v
	}
	return &ResourceCatalog{regions: norm}, nil
}

// For returns a copy of the region's entries, falling back to DefaultRegion.
func (c *ResourceCatalog) For(region string) []model.SupportResource {
	list, ok := c.regions[strings.ToUpper(strings.TrimSpace(region))]
	if !ok {
		list = c.regions[DefaultRegion]
	}
	return append([]model.SupportResource{}, list...)
}
