package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQL is a Store backed by a single table through database/sql. Queries use
// ordinal placeholders ($1, $2, ...), which PostgreSQL drivers and SQLite
// both accept. Filterable attributes are restricted to the declared column
// list; anything else is an invalid lookup. Slice filters render as
// = ANY($n) and need an array-capable driver.
type SQL struct {
	db         *sql.DB
	table      string
	identifier string
	columns    []string
	colSet     map[string]struct{}
}

// NewSQL creates a SQL store over the given table. The identifier names the
// primary key column and columns is the full set of selectable columns.
func NewSQL(db *sql.DB, table, identifier string, columns []string) *SQL {
	if identifier == "" {
		identifier = "id"
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	sort.Strings(cols)

	colSet := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		colSet[c] = struct{}{}
	}
	return &SQL{
		db:         db,
		table:      table,
		identifier: identifier,
		columns:    cols,
		colSet:     colSet,
	}
}

// Filter returns all rows matching the filter set, ordered by identifier.
func (s *SQL) Filter(ctx context.Context, filters Filters) ([]Object, error) {
	query, values, err := s.selectQuery(filters, 0)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.table, convertDBError(err))
	}
	defer rows.Close()

	results, err := s.scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s rows: %w", s.table, convertDBError(err))
	}
	return results, nil
}

// Get returns the single row matching the filter set.
func (s *SQL) Get(ctx context.Context, filters Filters) (Object, error) {
	// LIMIT 2 is enough to distinguish one match from many.
	query, values, err := s.selectQuery(filters, 2)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.table, convertDBError(err))
	}
	defer rows.Close()

	results, err := s.scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s rows: %w", s.table, convertDBError(err))
	}

	switch len(results) {
	case 0:
		return nil, fmt.Errorf("%w: no %s row matches %v", ErrNotFound, s.table, filters)
	case 1:
		return results[0], nil
	default:
		return nil, fmt.Errorf("%w: more than one %s row matches %v", ErrMultipleObjects, s.table, filters)
	}
}

// Save inserts the object, or updates it when a row with its identifier
// already exists. Objects without an identifier get a generated UUID.
func (s *SQL) Save(ctx context.Context, obj Object) (Object, error) {
	record := obj.Clone()
	if record == nil {
		record = Object{}
	}

	id, hasID := record[s.identifier]
	if !hasID || id == nil {
		record[s.identifier] = uuid.New().String()
		return s.insert(ctx, record)
	}

	exists, err := s.exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return s.update(ctx, record, id)
	}
	return s.insert(ctx, record)
}

// Delete removes the row matching the object's identifier.
func (s *SQL) Delete(ctx context.Context, obj Object) error {
	id, ok := obj[s.identifier]
	if !ok || id == nil {
		return fmt.Errorf("%w: object has no %q attribute", ErrNotFound, s.identifier)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		pq.QuoteIdentifier(s.table), pq.QuoteIdentifier(s.identifier))

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", s.table, convertDBError(err))
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s=%v", ErrNotFound, s.identifier, id)
	}
	return nil
}

// selectQuery builds a SELECT over the declared columns with a deterministic
// WHERE clause. A non-zero limit appends LIMIT n.
func (s *SQL) selectQuery(filters Filters, limit int) (string, []interface{}, error) {
	where, values, err := s.whereClause(filters)
	if err != nil {
		return "", nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s", s.columnList(), pq.QuoteIdentifier(s.table))
	if where != "" {
		query += " WHERE " + where
	}
	query += fmt.Sprintf(" ORDER BY %s", pq.QuoteIdentifier(s.identifier))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return query, values, nil
}

// whereClause renders the filter set with sorted keys so generated SQL is
// stable. Slice values become ANY($n) membership tests.
func (s *SQL) whereClause(filters Filters) (string, []interface{}, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var clauses []string
	var values []interface{}
	counter := 1

	for _, key := range keys {
		if _, ok := s.colSet[key]; !ok {
			return "", nil, fmt.Errorf("%w: %q is not a column of %s", ErrInvalidLookup, key, s.table)
		}
		value := filters[key]
		if isSlice(value) {
			clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)", pq.QuoteIdentifier(key), counter))
			values = append(values, pq.Array(value))
		} else {
			clauses = append(clauses, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(key), counter))
			values = append(values, value)
		}
		counter++
	}

	return strings.Join(clauses, " AND "), values, nil
}

// insert writes a new row and returns it via RETURNING.
func (s *SQL) insert(ctx context.Context, record Object) (Object, error) {
	var fields []string
	var placeholders []string
	var values []interface{}
	counter := 1

	for _, col := range s.columns {
		value, ok := record[col]
		if !ok {
			continue
		}
		fields = append(fields, pq.QuoteIdentifier(col))
		placeholders = append(placeholders, fmt.Sprintf("$%d", counter))
		values = append(values, value)
		counter++
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no insertable columns for %s", ErrInvalidLookup, s.table)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		pq.QuoteIdentifier(s.table),
		strings.Join(fields, ", "),
		strings.Join(placeholders, ", "),
		s.columnList(),
	)

	row := s.db.QueryRowContext(ctx, query, values...)
	inserted, err := s.scanRow(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", s.table, convertDBError(err))
	}
	return inserted, nil
}

// update rewrites every supplied non-identifier column of the row.
func (s *SQL) update(ctx context.Context, record Object, id interface{}) (Object, error) {
	var assignments []string
	var values []interface{}
	counter := 1

	for _, col := range s.columns {
		if col == s.identifier {
			continue
		}
		value, ok := record[col]
		if !ok {
			continue
		}
		assignments = append(assignments, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(col), counter))
		values = append(values, value)
		counter++
	}
	if len(assignments) == 0 {
		// Nothing to change; return the current row.
		return s.Get(ctx, Filters{s.identifier: id})
	}

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = $%d RETURNING %s",
		pq.QuoteIdentifier(s.table),
		strings.Join(assignments, ", "),
		pq.QuoteIdentifier(s.identifier),
		counter,
		s.columnList(),
	)
	values = append(values, id)

	row := s.db.QueryRowContext(ctx, query, values...)
	updated, err := s.scanRow(row)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", s.table, convertDBError(err))
	}
	return updated, nil
}

// exists checks for a row by identifier.
func (s *SQL) exists(ctx context.Context, id interface{}) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE %s = $1)",
		pq.QuoteIdentifier(s.table), pq.QuoteIdentifier(s.identifier))

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", s.table, convertDBError(err))
	}
	return exists, nil
}

// columnList renders the sorted, quoted column list.
func (s *SQL) columnList() string {
	quoted := make([]string, len(s.columns))
	for i, c := range s.columns {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

// scanRow scans a single row into an object using the declared column order.
func (s *SQL) scanRow(row *sql.Row) (Object, error) {
	values := make([]interface{}, len(s.columns))
	valuePtrs := make([]interface{}, len(s.columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := row.Scan(valuePtrs...); err != nil {
		return nil, err
	}

	record := make(Object, len(s.columns))
	for i, col := range s.columns {
		record[col] = normalizeValue(values[i])
	}
	return record, nil
}

// scanRows scans all rows into objects keyed by the result column names.
func (s *SQL) scanRows(rows *sql.Rows) ([]Object, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []Object
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		record := make(Object, len(columns))
		for i, col := range columns {
			record[col] = normalizeValue(values[i])
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// normalizeValue widens driver byte slices into strings so objects compare
// and serialize uniformly across drivers.
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// isSlice reports whether a filter value carries membership semantics.
func isSlice(v interface{}) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	return reflect.TypeOf(v).Kind() == reflect.Slice
}

// convertDBError converts driver errors into the store error taxonomy.
func convertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22P02": // invalid_text_representation
			return fmt.Errorf("%w: %s", ErrInvalidLookup, pgErr.Message)
		case "42703": // undefined_column
			return fmt.Errorf("%w: %s", ErrInvalidLookup, pgErr.Message)
		case "22003": // numeric_value_out_of_range
			return fmt.Errorf("%w: %s", ErrInvalidLookup, pgErr.Message)
		}
	}

	return err
}
