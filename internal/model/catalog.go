package model

// Ingredient is immutable reference data. Names are unique and
// case-sensitive: "salt" has exactly one measurement unit, while "Salt"
// is a separate ingredient.
type Ingredient struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
}

type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}
