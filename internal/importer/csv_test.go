package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/recipe-share/internal/model"
)

func TestReadIngredients(t *testing.T) {
	input := strings.Join([]string{
		"абрикосовое варенье,г",
		"eggs, pcs",
		"lonely",
		"",
		`"salt, coarse",g,ignored`,
	}, "\n")

	items, err := ReadIngredients(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []model.Ingredient{
		{Name: "абрикосовое варенье", MeasurementUnit: "г"},
		{Name: "eggs", MeasurementUnit: "pcs"},
		{Name: "salt, coarse", MeasurementUnit: "g"},
	}, items)
}

func TestReadIngredients_Empty(t *testing.T) {
	items, err := ReadIngredients(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReadIngredients_Malformed(t *testing.T) {
	_, err := ReadIngredients(strings.NewReader("\"unterminated,g\n"))
	assert.Error(t, err)
}

func TestReadTagsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.csv")
	require.NoError(t, os.WriteFile(path, []byte("Breakfast,breakfast\nLunch,lunch\n"), 0o644))

	tags, err := ReadTagsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []model.Tag{
		{Name: "Breakfast", Slug: "breakfast"},
		{Name: "Lunch", Slug: "lunch"},
	}, tags)
}

func TestReadTagsFile_Missing(t *testing.T) {
	_, err := ReadTagsFile(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
