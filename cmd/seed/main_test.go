package main

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSampleCatalog(t *testing.T) {
	f, err := os.Open("catalog.yaml")
	require.NoError(t, err)
	defer f.Close()

	cat, err := loadCatalog(f)
	require.NoError(t, err)
	assert.Len(t, cat.Authors, 3)
	assert.Len(t, cat.Books, 4)

	b := cat.Books[0].model(42)
	assert.Equal(t, "9780441478125", b.ISBN)
	assert.Equal(t, "science fiction", b.Genre)
	assert.Equal(t, uint64(42), b.AuthorID)
	require.NotNil(t, b.PublishedYear)
	assert.Equal(t, 1969, *b.PublishedYear)
	assert.Nil(t, b.Description)

	a := cat.Authors[1].model()
	assert.Equal(t, "gabriel-garcia-marquez", a.Slug)
	assert.Nil(t, a.PhotoURL)
}

func TestLoadCatalogRejects(t *testing.T) {
	cases := map[string]string{
		"unknown author": `
authors: [{name: A}]
books: [{isbn: "9780441478125", title: T, author: B, genre: g, price_cents: 100}]`,
		"bad isbn": `
authors: [{name: A}]
books: [{isbn: "123", title: T, author: A, genre: g, price_cents: 100}]`,
		"unknown field": `
authors: [{name: A, nickname: X}]`,
		"missing price": `
authors: [{name: A}]
books: [{isbn: "9780441478125", title: T, author: A, genre: g}]`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loadCatalog(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}
