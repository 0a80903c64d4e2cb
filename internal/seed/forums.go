package seed

import (
	"context"
	_ "embed"
	"fmt"

	"quad/internal/models"
	"quad/internal/repository"
	"quad/internal/validation"

	"gopkg.in/yaml.v3"
)

//go:embed forums.yml
var forumsYAML []byte

// BuiltInForum is a permanent forum defined in forums.yml.
type BuiltInForum struct {
	Slug        string `yaml:"slug"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type forumCatalog struct {
	Forums []BuiltInForum `yaml:"forums"`
}

// BuiltInForums parses the embedded catalog.
func BuiltInForums() ([]BuiltInForum, error) {
	return parseForums(forumsYAML)
}

func parseForums(raw []byte) ([]BuiltInForum, error) {
	var catalog forumCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("parse forum catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(catalog.Forums))
	for _, f := range catalog.Forums {
		if err := validation.ValidateCategorySlug(f.Slug); err != nil {
			return nil, fmt.Errorf("forum %q: %w", f.Slug, err)
		}
		if f.Name == "" {
			return nil, fmt.Errorf("forum %q: name is required", f.Slug)
		}
		if _, dup := seen[f.Slug]; dup {
			return nil, fmt.Errorf("forum %q: duplicate slug", f.Slug)
		}
		seen[f.Slug] = struct{}{}
	}
	return catalog.Forums, nil
}

// Forums upserts the built-in forums by slug. Safe to run on every start.
func Forums(ctx context.Context, repo repository.ForumRepository) error {
	forums, err := BuiltInForums()
	if err != nil {
		return err
	}
	for i, item := range forums {
		forum := &models.Forum{
			Slug:        item.Slug,
			Name:        item.Name,
			Description: item.Description,
			Position:    i,
		}
		if err := repo.Upsert(ctx, forum); err != nil {
			return fmt.Errorf("seed built-in forum %s: %w", item.Slug, err)
		}
	}
	return nil
}
