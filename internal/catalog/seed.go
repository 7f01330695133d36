package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Seed is the YAML shape of a catalog fixture. Items and offers refer to
// categories and items by name.
type Seed struct {
	Categories []string    `yaml:"categories"`
	Items      []SeedItem  `yaml:"items"`
	Offers     []SeedOffer `yaml:"offers"`
}

type SeedItem struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Category    string `yaml:"category"`
	ImageURL    string `yaml:"image_url"`
}

type SeedOffer struct {
	Title           string    `yaml:"title"`
	Description     string    `yaml:"description"`
	DiscountPercent string    `yaml:"discount_percent"`
	Items           []string  `yaml:"items"`
	Categories      []string  `yaml:"categories"`
	Start           time.Time `yaml:"start"`
	End             time.Time `yaml:"end"`
	Active          *bool     `yaml:"active"`
}

func LoadSeed(r io.Reader) (*Seed, error) {
	var s Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &s, nil
}

func LoadSeedFile(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadSeed(f)
}

// ApplySeed inserts the fixture through repo, resolving names to ids.
func ApplySeed(ctx context.Context, repo Repository, s *Seed) error {
	categories := map[string]int64{}
	for _, name := range s.Categories {
		c := &Category{Name: name}
		if err := repo.CreateCategory(ctx, c); err != nil {
			return fmt.Errorf("seed category %q: %w", name, err)
		}
		categories[name] = c.ID
	}

	items := map[string]int64{}
	for _, si := range s.Items {
		catID, ok := categories[si.Category]
		if !ok {
			return fmt.Errorf("seed item %q: %w", si.Name, ErrCategoryNotFound)
		}
		price, err := decimal.NewFromString(si.Price)
		if err != nil {
			return fmt.Errorf("seed item %q: price: %w", si.Name, err)
		}
		it := &Item{
			Name:        si.Name,
			Description: si.Description,
			Price:       price,
			CategoryID:  catID,
			ImageURL:    si.ImageURL,
		}
		if err := repo.CreateItem(ctx, it); err != nil {
			return fmt.Errorf("seed item %q: %w", si.Name, err)
		}
		items[si.Name] = it.ID
	}

	for _, so := range s.Offers {
		pct, err := decimal.NewFromString(so.DiscountPercent)
		if err != nil {
			return fmt.Errorf("seed offer %q: discount: %w", so.Title, err)
		}
		o := &Offer{
			Title:           so.Title,
			Description:     so.Description,
			DiscountPercent: pct,
			StartDate:       so.Start,
			EndDate:         so.End,
			IsActive:        so.Active == nil || *so.Active,
		}
		for _, name := range so.Items {
			id, ok := items[name]
			if !ok {
				return fmt.Errorf("seed offer %q: item %q: %w", so.Title, name, ErrItemNotFound)
			}
			o.ItemIDs = append(o.ItemIDs, id)
		}
		for _, name := range so.Categories {
			id, ok := categories[name]
			if !ok {
				return fmt.Errorf("seed offer %q: category %q: %w", so.Title, name, ErrCategoryNotFound)
			}
			o.CategoryIDs = append(o.CategoryIDs, id)
		}
		if err := repo.CreateOffer(ctx, o); err != nil {
			return fmt.Errorf("seed offer %q: %w", so.Title, err)
		}
	}
	return nil
}
