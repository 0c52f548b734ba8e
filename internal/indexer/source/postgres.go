package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
	"github.com/lib/pq"
)

// Postgres reads documents from a table with an id column, an optional url
// column (omitted when urlColumn is empty) and one text column per indexed
// field. NULL field values read as empty text; a NULL id is an error. The whole read runs in a
// single read-only repeatable-read transaction so the index reflects one
// consistent state of the table.
type Postgres struct {
	client *postgres.Client
	table  string
	ref    string
	url    string
	fields []string
	logger *slog.Logger
}

func NewPostgres(client *postgres.Client, table, ref, urlColumn string, fields []string) *Postgres {
	return &Postgres{
		client: client,
		table:  table,
		ref:    ref,
		url:    urlColumn,
		fields: fields,
		logger: slog.Default().With("component", "postgres-source"),
	}
}

func (p *Postgres) query() string {
	cols := make([]string, 0, len(p.fields)+2)
	cols = append(cols,
		fmt.Sprintf("CAST(%s AS text)", pq.QuoteIdentifier(p.ref)),
		"''",
	)
	if p.url != "" {
		cols[1] = fmt.Sprintf("COALESCE(CAST(%s AS text), '')", pq.QuoteIdentifier(p.url))
	}
	for _, f := range p.fields {
		cols = append(cols, fmt.Sprintf("COALESCE(CAST(%s AS text), '')", pq.QuoteIdentifier(f)))
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(cols, ", "), pq.QuoteIdentifier(p.table), pq.QuoteIdentifier(p.ref))
}

func (p *Postgres) Each(ctx context.Context, fn func(Document) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	return p.client.InTx(ctx, opts, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, p.query())
		if err != nil {
			return fmt.Errorf("querying documents from %s: %w", p.table, err)
		}
		defer rows.Close()

		n := 0
		var id sql.NullString
		values := make([]string, len(p.fields)+1)
		dest := make([]any, 0, len(values)+1)
		dest = append(dest, &id)
		for i := range values {
			dest = append(dest, &values[i])
		}
		for rows.Next() {
			if err := rows.Scan(dest...); err != nil {
				return fmt.Errorf("scanning document row %d: %w", n+1, err)
			}
			doc, err := p.document(id, values, n+1)
			if err != nil {
				return err
			}
			if err := fn(doc); err != nil {
				return err
			}
			n++
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating document rows: %w", err)
		}
		p.logger.Info("documents read", "table", p.table, "count", n)
		return nil
	})
}

// document assembles the 1-based row'th result: values holds the url
// followed by one value per field.
func (p *Postgres) document(id sql.NullString, values []string, row int) (Document, error) {
	if !id.Valid {
		return Document{}, fmt.Errorf("row %d of %s: %s is NULL", row, p.table, p.ref)
	}
	doc := Document{ID: id.String, URL: values[0], Fields: make(map[string]string, len(p.fields))}
	for i, f := range p.fields {
		doc.Fields[f] = values[i+1]
	}
	return doc, nil
}
