// internal/datastore/postgres.go
package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"querydesk/internal/common/errors"
	"querydesk/internal/common/logger"
	"querydesk/internal/nlq/lexicon"
	"querydesk/internal/models"
)

// Postgres implements Store over database/sql with the lib/pq driver.
// Table and column identifiers cannot be parameterized, so both are checked
// against the lexicon's closed vocabulary before any SQL is assembled.
type Postgres struct {
	db     *sql.DB
	lex    *lexicon.Lexicon
	logger logger.Logger

	allowedColumns map[string]map[string]bool
}

func NewPostgres(db *sql.DB, lex *lexicon.Lexicon, log logger.Logger) *Postgres {
	allowed := make(map[string]map[string]bool, len(lex.Tables))
	for name, tax := range lex.Tables {
		cols := map[string]bool{"id": true}
		for _, c := range tax.AllColumns() {
			cols[c] = true
		}
		if owner := lex.OwnerColumn(name); owner != "" {
			cols[owner] = true
		}
		allowed[name] = cols
	}

	return &Postgres{
		db:             db,
		lex:            lex,
		logger:         log.With(map[string]interface{}{"component": "datastore"}),
		allowedColumns: allowed,
	}
}

func (p *Postgres) SelectAll(ctx context.Context, table string, limit int) ([]models.Row, error) {
	return p.SelectFiltered(ctx, table, nil, limit)
}

func (p *Postgres) SelectFiltered(ctx context.Context, table string, predicates []models.FilterPredicate, limit int) ([]models.Row, error) {
	if !p.lex.IsTable(table) {
		return nil, fmt.Errorf("%w: %s", errors.ErrUnsupportedTable, table)
	}

	where, args, err := p.buildWhere(table, predicates)
	if err != nil {
		return nil, err
	}

	query := "SELECT * FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewTableQueryError(table, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, errors.NewTableQueryError(table, err)
	}
	return out, nil
}

func (p *Postgres) Count(ctx context.Context, table string, predicates []models.FilterPredicate) (int, error) {
	if !p.lex.IsTable(table) {
		return 0, fmt.Errorf("%w: %s", errors.ErrUnsupportedTable, table)
	}

	where, args, err := p.buildWhere(table, predicates)
	if err != nil {
		return 0, err
	}

	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}

	var n int
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.NewTableQueryError(table, err)
	}
	return n, nil
}

// buildWhere renders predicates as SQL: OR within an OrGroup, AND across
// groups. Returns an empty clause for an empty predicate list.
func (p *Postgres) buildWhere(table string, predicates []models.FilterPredicate) (string, []interface{}, error) {
	if len(predicates) == 0 {
		return "", nil, nil
	}

	groups := make(map[int][]models.FilterPredicate)
	var order []int
	for _, pred := range predicates {
		if _, seen := groups[pred.OrGroup]; !seen {
			order = append(order, pred.OrGroup)
		}
		groups[pred.OrGroup] = append(groups[pred.OrGroup], pred)
	}
	sort.Ints(order)

	var args []interface{}
	var groupClauses []string
	for _, g := range order {
		var conds []string
		for _, pred := range groups[g] {
			cond, err := p.renderPredicate(table, pred, &args)
			if err != nil {
				return "", nil, err
			}
			conds = append(conds, cond)
		}
		if len(conds) == 1 {
			groupClauses = append(groupClauses, conds[0])
		} else {
			groupClauses = append(groupClauses, "("+strings.Join(conds, " OR ")+")")
		}
	}

	return strings.Join(groupClauses, " AND "), args, nil
}

func (p *Postgres) renderPredicate(table string, pred models.FilterPredicate, args *[]interface{}) (string, error) {
	if !p.allowedColumns[table][pred.Column] {
		return "", fmt.Errorf("%w: column %s.%s", errors.ErrUnsupportedTable, table, pred.Column)
	}

	place := func(v interface{}) string {
		*args = append(*args, v)
		return "$" + strconv.Itoa(len(*args))
	}

	switch pred.Operator {
	case models.OpContains:
		return pred.Column + " ILIKE " + place(fmt.Sprintf("%%%v%%", pred.Value)), nil
	case models.OpEquals:
		return pred.Column + " = " + place(pred.Value), nil
	case models.OpGT:
		return pred.Column + " > " + place(pred.Value), nil
	case models.OpGTE:
		return pred.Column + " >= " + place(pred.Value), nil
	case models.OpLT:
		return pred.Column + " < " + place(pred.Value), nil
	case models.OpRange:
		lower := pred.Column + " >= " + place(pred.Value)
		upper := pred.Column + " < " + place(pred.Value2)
		return "(" + lower + " AND " + upper + ")", nil
	}
	return "", fmt.Errorf("%w: %s", errors.ErrUnsupportedOperator, pred.Operator)
}

// scanRows reads every row into a generic map keyed by column name.
func scanRows(rows *sql.Rows) ([]models.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []models.Row
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(models.Row, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
