// Package protomap provides single-table modeling helpers over the AWS SDK for
// Go v2 DynamoDB client.
//
// Several models share one physical table and are kept apart by how their key
// columns are encoded. protomap offers three composable column transforms and a
// factory for the shared base model they derive from.
//
// # Key Concepts
//
// A Model is an ordered set of Columns. Each Column has an attribute name, the
// physical name it is stored under, and a Codec that converts Go values to and
// from DynamoDB attribute values.
//
// SharedBase creates a model with two String key columns. Every model derived
// from it with Extend resolves to the shared base's table.
//
// A Mapper clones columns of a model and swaps in a wrapping codec:
//   - Static: only one exact value may be written or read (discriminators)
//   - Prefix: a fixed prefix is prepended on write and required on read
//   - Override: the codec is replaced without any transform
//
// Clones keep the physical name of the column they were made from, so binding a
// clone under a new attribute name still targets the same DynamoDB attribute.
//
// # Basic Usage
//
//	base, err := protomap.SharedBase(func(o *protomap.SharedOptions) {
//	    o.TableName = "my-table"
//	    o.HashKeyName = "h"
//	    o.RangeKeyName = "r"
//	})
//	m := protomap.NewMapper(base)
//	user, err := m.Extend("User",
//	    protomap.As("kind", m.Static(protomap.String, protomap.ColumnName("h"), "users")),
//	    protomap.As("id", m.Prefix(protomap.UUID, protomap.ColumnName("r"), "uById::")),
//	    protomap.As("email", protomap.MustColumn(protomap.String)),
//	)
//
//	// | h     | r                 | email         |
//	// | ===== | ================= | ============= |
//	// | users | uById::<uuid>     | a@example.com |
//	table := protomap.NewTable(base).Register(user)
//	putInput, err := table.MarshalPut(ctx, user, protomap.Values{"id": id, "email": "a@example.com"})
//	_, err = ddb.PutItem(ctx, putInput)
//
// # Querying
//
// A Query on a model with a static hash key and a prefixed range key matches
// every item of that model:
//
//	input, err := table.MarshalQuery(ctx, &protomap.Query{Model: user})
//	// KeyConditionExpression: (#0 = :0) AND (begins_with (#1, :1))
//
// Table.Unmarshal resolves which registered model an item belongs to by
// letting each model's static and prefixed columns accept or reject it.
//
// # Pagination
//
// Built-in pagination support stores cursors in the same table:
//
//	paginator := table.Paginator(ddb)
//	cursor, err := paginator.PageCursor(ctx, lastEvaluatedKey)
//	startKey, err := paginator.StartKey(ctx, cursor)
package protomap
