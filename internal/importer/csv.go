// Package importer reads catalog fixtures (ingredients and tags) from CSV.
//
// Files have no header. Ingredient rows are "name,unit", tag rows are
// "name,slug". Rows with fewer than two columns are skipped; extra columns
// are ignored. Values are trimmed but otherwise passed through, validation
// happens in the service that stores them.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sakif/recipe-share/internal/model"
)

// ReadIngredients parses ingredient rows from r.
func ReadIngredients(r io.Reader) ([]model.Ingredient, error) {
	var items []model.Ingredient
	err := readPairs(r, func(name, unit string) {
		items = append(items, model.Ingredient{Name: name, MeasurementUnit: unit})
	})
	if err != nil {
		return nil, fmt.Errorf("importer: ingredients: %w", err)
	}
	return items, nil
}

// ReadTags parses tag rows from r.
func ReadTags(r io.Reader) ([]model.Tag, error) {
	var tags []model.Tag
	err := readPairs(r, func(name, slug string) {
		tags = append(tags, model.Tag{Name: name, Slug: slug})
	})
	if err != nil {
		return nil, fmt.Errorf("importer: tags: %w", err)
	}
	return tags, nil
}

// ReadIngredientsFile opens path and parses it with ReadIngredients.
func ReadIngredientsFile(path string) ([]model.Ingredient, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("importer: %w", err)
	}
	defer f.Close()
	return ReadIngredients(f)
}

// ReadTagsFile opens path and parses it with ReadTags.
func ReadTagsFile(path string) ([]model.Tag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("importer: %w", err)
	}
	defer f.Close()
	return ReadTags(f)
}

func readPairs(r io.Reader, emit func(a, b string)) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(record) < 2 {
			continue
		}
		emit(strings.TrimSpace(record[0]), strings.TrimSpace(record[1]))
	}
}
