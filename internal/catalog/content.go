package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/BTreeMap/EnrollBot/internal/models"
	"gopkg.in/yaml.v3"
)

// DefaultProfilePrompt is sent when no profile prompt is configured.
const DefaultProfilePrompt = "🚨 *Para asesorarte y brindarte la INVERSIÓN del programa, por favor indícame tu perfil:* \n" +
	"1) Soy egresado y quiero actualizarme\n" +
	"2) Soy egresado y busco chamba\n" +
	"3) Soy estudiante y quiero aprender más\n" +
	"4) Soy estudiante y busco prácticas\n" +
	"5) Soy independiente"

// Discount percentages quoted when the content file does not set them.
const (
	DefaultInstallmentDiscountPct = 45
	DefaultCashDiscountPct        = 55
)

// DefaultContent returns the content used when the file is missing or partial.
func DefaultContent() models.Content {
	return models.Content{
		ProfilePrompt:          DefaultProfilePrompt,
		InstallmentDiscountPct: DefaultInstallmentDiscountPct,
		CashDiscountPct:        DefaultCashDiscountPct,
	}
}

// ContentFileStore reads editable texts from a YAML file. JSON is valid YAML,
// so the dashboard's JSON exports load unchanged.
type ContentFileStore struct {
	path string
}

// NewContentFileStore creates a content store for the given file.
func NewContentFileStore(path string) *ContentFileStore {
	slog.Debug("Creating ContentFileStore", "path", path)
	return &ContentFileStore{path: path}
}

// Read implements ContentStore. A missing file yields the defaults.
func (s *ContentFileStore) Read(ctx context.Context) (models.Content, error) {
	content := DefaultContent()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("Content file not found, using defaults", "path", s.path)
		return content, nil
	}
	if err != nil {
		slog.Error("Content Read failed to read file", "error", err, "path", s.path)
		return content, fmt.Errorf("%w: read %s: %v", ErrUnavailable, s.path, err)
	}
	if err := yaml.Unmarshal(data, &content); err != nil {
		slog.Error("Content Read failed to parse file", "error", err, "path", s.path)
		return DefaultContent(), fmt.Errorf("%w: parse %s: %v", ErrUnavailable, s.path, err)
	}
	applyContentDefaults(&content)
	return content, nil
}

func applyContentDefaults(c *models.Content) {
	if c.ProfilePrompt == "" {
		c.ProfilePrompt = DefaultProfilePrompt
	}
	if c.InstallmentDiscountPct <= 0 {
		c.InstallmentDiscountPct = DefaultInstallmentDiscountPct
	}
	if c.CashDiscountPct <= 0 {
		c.CashDiscountPct = DefaultCashDiscountPct
	}
}

// StaticContentStore serves fixed content.
type StaticContentStore struct {
	Content models.Content
}

// Read implements ContentStore.
func (s StaticContentStore) Read(ctx context.Context) (models.Content, error) {
	c := s.Content
	applyContentDefaults(&c)
	return c, nil
}
