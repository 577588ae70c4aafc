package database

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/querypilot/querypilot/internal/errors"
)

// Column describes one column of a table
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
}

// Table describes one table with its columns in declaration order
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Schema is the introspected shape of the database
type Schema struct {
	Tables []Table `json:"tables"`
}

// defaultSchemaNote is the reference schema handed to the LLM when live
// introspection is unavailable. Names here must match the migrations exactly.
const defaultSchemaNote = `Database schema (use these exact names):

TABLE products:
 - product_id  (INTEGER)   -- primary key
 - product_name (TEXT)
 - category (TEXT)

TABLE customers:
 - customer_id (INTEGER)   -- primary key
 - name (TEXT)
 - city (TEXT)

TABLE sales:
 - id (INTEGER)            -- primary key
 - date (TEXT)             -- format YYYY-MM-DD
 - product_id (INTEGER)    -- foreign key -> products.product_id
 - customer_id (INTEGER)   -- foreign key -> customers.customer_id
 - quantity (INTEGER)
 - price (REAL)
`

// DefaultSchemaNote returns the hard-coded schema description
func DefaultSchemaNote() string {
	return defaultSchemaNote
}

// Introspect reads table and column definitions from the live database
func (e *Engine) Introspect(ctx context.Context) (*Schema, error) {
	rows, err := e.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' AND name NOT LIKE 'schema_migrations%' ORDER BY name")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSchemaIntrospect, "Failed to list tables")
	}
	defer rows.Close()

	var tableNames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeSchemaIntrospect, "Failed to scan table name")
		}
		tableNames = append(tableNames, name)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSchemaIntrospect, "Failed to list tables")
	}

	schema := &Schema{Tables: make([]Table, 0, len(tableNames))}
	for _, name := range tableNames {
		table, err := e.introspectTable(ctx, name)
		if err != nil {
			return nil, err
		}
		schema.Tables = append(schema.Tables, table)
	}

	return schema, nil
}

func (e *Engine) introspectTable(ctx context.Context, name string) (Table, error) {
	// pragma_table_info is the queryable form of PRAGMA table_info
	rows, err := e.db.QueryContext(ctx,
		"SELECT name, type, pk FROM pragma_table_info(?) ORDER BY cid", name)
	if err != nil {
		return Table{}, apperrors.Wrap(err, apperrors.ErrCodeSchemaIntrospect,
			fmt.Sprintf("Failed to introspect table %s", name))
	}
	defer rows.Close()

	table := Table{Name: name}
	for rows.Next() {
		var col Column
		var pk int
		if err := rows.Scan(&col.Name, &col.Type, &pk); err != nil {
			return Table{}, apperrors.Wrap(err, apperrors.ErrCodeSchemaIntrospect,
				fmt.Sprintf("Failed to scan column of table %s", name))
		}
		col.PrimaryKey = pk > 0
		table.Columns = append(table.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return Table{}, apperrors.Wrap(err, apperrors.ErrCodeSchemaIntrospect,
			fmt.Sprintf("Failed to introspect table %s", name))
	}

	return table, nil
}

// SchemaNote renders the live schema as prompt text. Falls back to the
// hard-coded reference schema when introspection fails or finds nothing.
func (e *Engine) SchemaNote(ctx context.Context) string {
	schema, err := e.Introspect(ctx)
	if err != nil || len(schema.Tables) == 0 {
		return defaultSchemaNote
	}
	return FormatSchemaNote(schema)
}

// FormatSchemaNote renders an introspected schema in the prompt format
func FormatSchemaNote(schema *Schema) string {
	var sb strings.Builder
	sb.WriteString("Database schema (use these exact names):\n")
	for _, table := range schema.Tables {
		sb.WriteString(fmt.Sprintf("\nTABLE %s:\n", table.Name))
		for _, col := range table.Columns {
			sb.WriteString(fmt.Sprintf(" - %s (%s)", col.Name, col.Type))
			if col.PrimaryKey {
				sb.WriteString("   -- primary key")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
