// Command seed loads authors and books from a YAML catalog.  Authors are
// matched by slug and books by ISBN, so running it twice is harmless.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/iliyamo/book-store/internal/config"
	"github.com/iliyamo/book-store/internal/database"
	"github.com/iliyamo/book-store/internal/logging"
	"github.com/iliyamo/book-store/internal/model"
	"github.com/iliyamo/book-store/internal/repository"
	"github.com/iliyamo/book-store/internal/utils"
	"github.com/iliyamo/book-store/internal/validation"
)

type seedAuthor struct {
	Name     string `yaml:"name" validate:"required,max=200"`
	Bio      string `yaml:"bio"`
	PhotoURL string `yaml:"photo_url" validate:"omitempty,url"`
}

type seedBook struct {
	ISBN          string `yaml:"isbn" validate:"required,isbn"`
	Title         string `yaml:"title" validate:"required,max=300"`
	Author        string `yaml:"author" validate:"required"`
	Genre         string `yaml:"genre" validate:"required,max=64"`
	Description   string `yaml:"description"`
	PriceCents    uint32 `yaml:"price_cents" validate:"required"`
	Stock         uint32 `yaml:"stock"`
	CoverURL      string `yaml:"cover_url" validate:"omitempty,url"`
	PublishedYear int    `yaml:"published_year" validate:"omitempty,gte=1000,lte=2100"`
}

type catalog struct {
	Authors []seedAuthor `yaml:"authors" validate:"dive"`
	Books   []seedBook   `yaml:"books" validate:"dive"`
}

// loadCatalog decodes and validates a catalog.  Every book must name an
// author listed in the same file, by name or slug.
func loadCatalog(r io.Reader) (*catalog, error) {
	var cat catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := validation.New().Validate(&cat); err != nil {
		if fields, ok := validation.Fields(err); ok {
			return nil, fmt.Errorf("invalid catalog: %v", fields)
		}
		return nil, err
	}
	slugs := make(map[string]bool, len(cat.Authors))
	for _, a := range cat.Authors {
		slugs[utils.Slugify(a.Name)] = true
	}
	for _, b := range cat.Books {
		if !slugs[utils.Slugify(b.Author)] {
			return nil, fmt.Errorf("book %s: unknown author %q", b.ISBN, b.Author)
		}
	}
	return &cat, nil
}

func (a seedAuthor) model() *model.Author {
	return &model.Author{
		Name:     strings.TrimSpace(a.Name),
		Slug:     utils.Slugify(a.Name),
		Bio:      optional(a.Bio),
		PhotoURL: optional(a.PhotoURL),
	}
}

func (b seedBook) model(authorID uint64) *model.Book {
	m := &model.Book{
		ISBN:        utils.NormalizeISBN(b.ISBN),
		Title:       strings.TrimSpace(b.Title),
		AuthorID:    authorID,
		Genre:       strings.ToLower(strings.TrimSpace(b.Genre)),
		Description: optional(b.Description),
		PriceCents:  b.PriceCents,
		Stock:       b.Stock,
		CoverURL:    optional(b.CoverURL),
	}
	if b.PublishedYear != 0 {
		y := b.PublishedYear
		m.PublishedYear = &y
	}
	return m
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func main() {
	file := flag.String("file", "catalog.yaml", "YAML catalog to load")
	flag.Parse()

	cfg := config.Load()
	log := logging.New(cfg.IsProd(), cfg.LogLevel)

	f, err := os.Open(*file)
	if err != nil {
		log.WithError(err).Fatal("open catalog")
	}
	cat, err := loadCatalog(f)
	_ = f.Close()
	if err != nil {
		log.WithError(err).Fatal("load catalog")
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	authors := repository.NewAuthorRepo(db)
	books := repository.NewBookRepo(db)

	ids := make(map[string]uint64, len(cat.Authors))
	for _, a := range cat.Authors {
		m := a.model()
		if err := authors.UpsertBySlug(ctx, m); err != nil {
			log.WithError(err).WithField("author", a.Name).Fatal("upsert author")
		}
		ids[m.Slug] = m.ID
	}
	for _, b := range cat.Books {
		if err := books.UpsertByISBN(ctx, b.model(ids[utils.Slugify(b.Author)])); err != nil {
			log.WithError(err).WithField("isbn", b.ISBN).Fatal("upsert book")
		}
	}
	log.WithFields(logrus.Fields{"authors": len(cat.Authors), "books": len(cat.Books)}).Info("catalog seeded")
}
