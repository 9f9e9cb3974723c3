package dynamock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/nisimpson/protomap"
)

// ErrUnknownModel is returned when a fixture names a model the table does not register.
var ErrUnknownModel = errors.New("unknown model")

// FixtureDocument is the root structure of a JSON fixture: an array of items.
type FixtureDocument []FixtureItem

// FixtureItem is one item of a JSON fixture, naming the registered model it
// belongs to and its attribute values.
//
//	[
//	  {"model": "User", "values": {"id": "6f1c...", "email": "a@example.com"}},
//	  {"model": "Order", "values": {"customer": "jane", "number": 1, "total": 9.5}}
//	]
//
// Numbers are passed to codecs as json.Number and timestamps as RFC3339 strings.
type FixtureItem struct {
	Model  string          `json:"model"`
	Values protomap.Values `json:"values"`
}

// SeedFromJSON converts test data from a JSON fixture document into entities of
// the models registered on the seeder's table and persists them.
// Returns the number of items saved and any errors generated.
func (s *SeedTestData) SeedFromJSON(ctx context.Context, r io.Reader) (int, error) {
	var document FixtureDocument
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	if err := decoder.Decode(&document); err != nil {
		return 0, fmt.Errorf("failed to parse JSON document: %w", err)
	}

	entities, err := s.entities(document)
	if err != nil {
		return 0, err
	}

	if err := s.SeedEntities(ctx, entities...); err != nil {
		return 0, err
	}
	return len(entities), nil
}

func (s *SeedTestData) entities(document FixtureDocument) ([]protomap.Entity, error) {
	models := make(map[string]*protomap.Model)
	for _, m := range s.store.Table.Models() {
		models[m.Name()] = m
	}

	entities := make([]protomap.Entity, 0, len(document))
	for i, item := range document {
		if item.Model == "" {
			return nil, fmt.Errorf("item at index %d missing required 'model' field", i)
		}

		model, ok := models[item.Model]
		if !ok {
			return nil, fmt.Errorf("item at index %d: %w %q", i, ErrUnknownModel, item.Model)
		}

		entities = append(entities, protomap.Entity{Model: model, Values: item.Values})
	}
	return entities, nil
}
