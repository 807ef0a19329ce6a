// Package catalog loads the quiz questions and validates them once, so the rest of
// the service never sees a malformed question.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"

	"team-quiz-service/internal/domain"
	"team-quiz-service/internal/grading"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Loader fetches the raw catalog from a backing store.
type Loader interface {
	LoadCatalog(ctx context.Context) (domain.Catalog, error)
}

// FileLoader reads a YAML catalog file.
type FileLoader struct {
	path string
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

func (l *FileLoader) LoadCatalog(_ context.Context) (domain.Catalog, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (domain.Catalog, error) {
	var c domain.Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return domain.Catalog{}, fmt.Errorf("%w: %v", domain.ErrInvalidCatalog, err)
	}
	return c, nil
}

// Load fetches the catalog through l and validates it.
func Load(ctx context.Context, l Loader) (domain.Catalog, error) {
	c, err := l.LoadCatalog(ctx)
	if err != nil {
		return domain.Catalog{}, err
	}
	if err := Validate(c); err != nil {
		return domain.Catalog{}, err
	}
	return c, nil
}

var validate = validator.New()

// Validate checks structure, id uniqueness and that every canonical answer can be
// graded against.
func Validate(c domain.Catalog) error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", domain.ErrInvalidCatalog, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidCatalog, err)
	}

	seen := make(map[int]struct{}, len(c.Questions))
	for _, q := range c.Questions {
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %d", domain.ErrInvalidCatalog, q.ID)
		}
		seen[q.ID] = struct{}{}

		if !q.Type.Valid() {
			return fmt.Errorf("%w: question %d has unsupported type %q", domain.ErrInvalidCatalog, q.ID, q.Type)
		}
		for idx, sq := range q.Subquestions {
			if err := grading.ValidateCanonical(q.Type, sq.Answer); err != nil {
				return fmt.Errorf("question %d subquestion %d: %w", q.ID, idx, err)
			}
			if q.Type == domain.TypeSingleChoice && len(sq.Choices) > 0 && !hasChoice(sq.Choices, sq.Answer) {
				return fmt.Errorf("%w: question %d subquestion %d: answer %q is not one of the choices",
					domain.ErrInvalidCatalog, q.ID, idx, sq.Answer)
			}
		}
	}
	return nil
}

func hasChoice(choices []string, answer string) bool {
	want := grading.NormalizeText(answer)
	for _, c := range choices {
		if grading.NormalizeText(c) == want {
			return true
		}
	}
	return false
}
