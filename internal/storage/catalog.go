// internal/storage/catalog.go
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"editorimages/internal/cleanup"
)

// Catalog exposes the content-bearing tables registered in config as
// scannable entity types. Registration is explicit per table; which of a
// table's columns hold text is discovered from information_schema, so a
// host migration adding a text column is picked up without a config change.
type Catalog struct {
	pool   *pgxpool.Pool
	tables []string
}

func NewCatalog(pool *pgxpool.Pool, tables []string) *Catalog {
	return &Catalog{pool: pool, tables: tables}
}

func (c *Catalog) EntityTypes(ctx context.Context) ([]cleanup.EntityType, error) {
	const op = "storage.Catalog.EntityTypes"

	var types []cleanup.EntityType
	for _, table := range c.tables {
		rows, err := c.pool.Query(ctx,
			`SELECT column_name, data_type FROM information_schema.columns
			 WHERE table_schema = current_schema() AND table_name = $1
			 ORDER BY ordinal_position`,
			table)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", op, err)
		}

		var attrs []cleanup.Attribute
		for rows.Next() {
			var name, dataType string
			if err := rows.Scan(&name, &dataType); err != nil {
				rows.Close()
				return nil, fmt.Errorf("%s: %v", op, err)
			}
			attrs = append(attrs, cleanup.Attribute{
				Name: name,
				Text: dataType == "text" || dataType == "character varying",
			})
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%s: %v", op, err)
		}

		types = append(types, &tableEntity{pool: c.pool, table: table, attrs: attrs})
	}
	return types, nil
}

// tableEntity is one registered table viewed as a content entity type.
type tableEntity struct {
	pool  *pgxpool.Pool
	table string
	attrs []cleanup.Attribute
}

func (t *tableEntity) Name() string { return t.table }

func (t *tableEntity) Attributes() []cleanup.Attribute { return t.attrs }

func (t *tableEntity) TextValues(ctx context.Context, attr string) ([]string, []error) {
	query := fmt.Sprintf(`SELECT %s FROM %s`,
		pgx.Identifier{attr}.Sanitize(), pgx.Identifier{t.table}.Sanitize())

	rows, err := t.pool.Query(ctx, query)
	if err != nil {
		return nil, []error{err}
	}
	defer rows.Close()

	var values []string
	var readErrs []error
	for rows.Next() {
		var value *string
		if err := rows.Scan(&value); err != nil {
			readErrs = append(readErrs, err)
			continue
		}
		if value == nil || *value == "" {
			continue
		}
		values = append(values, *value)
	}
	if err := rows.Err(); err != nil {
		readErrs = append(readErrs, err)
	}
	return values, readErrs
}
