// Package assert provides fluent assertion utilities for testing DynamoDB items
// written through protomap models. It makes tests more readable and maintainable
// by providing expressive assertion methods.
//
// # Usage
//
//	import "github.com/nisimpson/protomap/dynamock/assert"
//
//	// Assert on DynamoDB items
//	assert.Items(t, result.Items).
//		HasCount(3).
//		HasAttribute("hk", "users").
//		HasPrefixedAttribute("rk", "uById::").
//		ResolvesTo(table, "User")
//
//	// Assert on a single item
//	assert.Item(t, item).
//		HasKey("hk", "users").
//		ResolvesTo(table, "User")
package assert

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/protomap"
)

// ItemsAssertion provides fluent assertions for DynamoDB items.
type ItemsAssertion struct {
	t     *testing.T
	items []protomap.Item
}

// Items creates a new ItemsAssertion for the given DynamoDB items.
func Items(t *testing.T, items []protomap.Item) *ItemsAssertion {
	return &ItemsAssertion{
		t:     t,
		items: items,
	}
}

// HasCount asserts that the items collection has the expected count.
func (a *ItemsAssertion) HasCount(expected int) *ItemsAssertion {
	a.t.Helper()
	if len(a.items) != expected {
		a.t.Errorf("expected %d items, got %d", expected, len(a.items))
	}
	return a
}

// IsEmpty asserts that the items collection is empty.
func (a *ItemsAssertion) IsEmpty() *ItemsAssertion {
	a.t.Helper()
	return a.HasCount(0)
}

// IsNotEmpty asserts that the items collection is not empty.
func (a *ItemsAssertion) IsNotEmpty() *ItemsAssertion {
	a.t.Helper()
	if len(a.items) == 0 {
		a.t.Error("expected items to not be empty")
	}
	return a
}

// HasAttribute asserts that at least one item has the specified S attribute
// with the expected value.
func (a *ItemsAssertion) HasAttribute(attributeName, expectedValue string) *ItemsAssertion {
	a.t.Helper()
	for _, item := range a.items {
		if v, ok := stringValue(item, attributeName); ok && v == expectedValue {
			return a
		}
	}

	a.t.Errorf("expected to find attribute %s with value %s in items", attributeName, expectedValue)
	return a
}

// HasPrefixedAttribute asserts that every item has the specified S attribute
// beginning with prefix.
func (a *ItemsAssertion) HasPrefixedAttribute(attributeName, prefix string) *ItemsAssertion {
	a.t.Helper()
	for i, item := range a.items {
		v, ok := stringValue(item, attributeName)
		if !ok || !strings.HasPrefix(v, prefix) {
			a.t.Errorf("expected item %d attribute %s to begin with %s, got %q", i, attributeName, prefix, v)
		}
	}
	return a
}

// ResolvesTo asserts that every item resolves to the named model registered on table.
func (a *ItemsAssertion) ResolvesTo(table *protomap.Table, modelName string) *ItemsAssertion {
	a.t.Helper()
	for i, item := range a.items {
		if name, err := resolve(table, item); err != nil || name != modelName {
			a.t.Errorf("expected item %d to resolve to %s, got %q (%v)", i, modelName, name, err)
		}
	}
	return a
}

// ContainsModel asserts that at least one item resolves to the named model.
func (a *ItemsAssertion) ContainsModel(table *protomap.Table, modelName string) *ItemsAssertion {
	a.t.Helper()
	for _, item := range a.items {
		if name, err := resolve(table, item); err == nil && name == modelName {
			return a
		}
	}

	a.t.Errorf("expected to find an item of model %s in items", modelName)
	return a
}

// ItemAssertion provides fluent assertions for an individual DynamoDB item.
type ItemAssertion struct {
	t    *testing.T
	item protomap.Item
}

// Item creates a new ItemAssertion for the given item.
func Item(t *testing.T, item protomap.Item) *ItemAssertion {
	return &ItemAssertion{
		t:    t,
		item: item,
	}
}

// HasKey asserts that the item has the specified S key attribute with the expected value.
func (a *ItemAssertion) HasKey(keyName, expectedValue string) *ItemAssertion {
	a.t.Helper()
	v, ok := stringValue(a.item, keyName)
	if !ok {
		a.t.Errorf("expected item to have key %s", keyName)
		return a
	}
	if v != expectedValue {
		a.t.Errorf("expected key %s to be %s, got %s", keyName, expectedValue, v)
	}
	return a
}

// HasAttribute asserts that the item has the specified S attribute with the expected value.
func (a *ItemAssertion) HasAttribute(attrName, expectedValue string) *ItemAssertion {
	a.t.Helper()
	return a.HasKey(attrName, expectedValue)
}

// LacksAttribute asserts that the item does not store the attribute.
func (a *ItemAssertion) LacksAttribute(attrName string) *ItemAssertion {
	a.t.Helper()
	if _, ok := a.item[attrName]; ok {
		a.t.Errorf("expected item to not have attribute %s", attrName)
	}
	return a
}

// HasPrefixedAttribute asserts that the item has the specified S attribute beginning with prefix.
func (a *ItemAssertion) HasPrefixedAttribute(attrName, prefix string) *ItemAssertion {
	a.t.Helper()
	v, ok := stringValue(a.item, attrName)
	if !ok || !strings.HasPrefix(v, prefix) {
		a.t.Errorf("expected attribute %s to begin with %s, got %q", attrName, prefix, v)
	}
	return a
}

// ResolvesTo asserts that the item resolves to the named model registered on table.
func (a *ItemAssertion) ResolvesTo(table *protomap.Table, modelName string) *ItemAssertion {
	a.t.Helper()
	if name, err := resolve(table, a.item); err != nil || name != modelName {
		a.t.Errorf("expected item to resolve to %s, got %q (%v)", modelName, name, err)
	}
	return a
}

func resolve(table *protomap.Table, item protomap.Item) (string, error) {
	model, _, err := table.Unmarshal(context.Background(), item)
	if err != nil {
		return "", err
	}
	return model.Name(), nil
}

func stringValue(item protomap.Item, name string) (string, bool) {
	s, ok := item[name].(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return s.Value, true
}
