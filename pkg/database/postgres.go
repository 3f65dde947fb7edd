package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
)

// PostgresDatabase PostgreSQL数据库实现
//
// Rows are selected as to_jsonb(row) so they decode with the same json tags
// the REST backend uses; writes go through json_populate_record so column
// types (uuid, date, int[], jsonb) are coerced by the server.
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase 创建PostgreSQL数据库实例
func NewPostgresDatabase(dsn string) (*PostgresDatabase, error) {
	// 尝试多种连接策略来解决Vercel Lambda的IPv6问题
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		addConnectionParams(dsn, "connect_timeout=10"),
		addConnectionParams(dsn, "sslmode=require&connect_timeout=10"),
		dsn, // 最后尝试原始DSN
	}

	var lastErr error
	for i, strategy := range strategies {
		db, err := sql.Open("postgres", strategy)
		if err != nil {
			slog.Warn("postgres connection strategy failed to open", "strategy", i+1, "error", err)
			lastErr = err
			continue
		}

		// 设置连接池参数，适合无服务器环境
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err != nil {
			slog.Warn("postgres connection strategy failed to ping", "strategy", i+1, "error", err)
			db.Close()
			lastErr = err
			continue
		}

		slog.Info("postgres connection established", "strategy", i+1)
		return &PostgresDatabase{db: db}, nil
	}

	return nil, fmt.Errorf("failed to connect to PostgreSQL with all strategies: %w", lastErr)
}

// NewPostgresDatabaseFromDB wraps an existing handle.
func NewPostgresDatabaseFromDB(db *sql.DB) *PostgresDatabase {
	return &PostgresDatabase{db: db}
}

// addConnectionParams 添加连接参数到DSN
func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}

	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}

	return dsn + separator + params
}

func (db *PostgresDatabase) Kind() string { return "postgresql" }

// sqlArgs collects positional parameters.
type sqlArgs []interface{}

func (a *sqlArgs) add(v interface{}) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

func sqlParam(v interface{}) interface{} {
	switch v.(type) {
	case nil, string, bool, int, int64, float64, time.Time, *time.Time:
		return v
	}
	return formatValue(v)
}

// whereClause renders filters against the given table alias.
func whereClause(alias string, filters []Filter, args *sqlArgs) string {
	if len(filters) == 0 {
		return ""
	}
	conds := make([]string, 0, len(filters))
	for _, f := range filters {
		col := alias + "." + pq.QuoteIdentifier(f.Column)
		switch f.Op {
		case OpEq:
			conds = append(conds, col+" = "+args.add(sqlParam(f.Value)))
		case OpNeq:
			conds = append(conds, col+" <> "+args.add(sqlParam(f.Value)))
		case OpGt:
			conds = append(conds, col+" > "+args.add(sqlParam(f.Value)))
		case OpGte:
			conds = append(conds, col+" >= "+args.add(sqlParam(f.Value)))
		case OpLt:
			conds = append(conds, col+" < "+args.add(sqlParam(f.Value)))
		case OpLte:
			conds = append(conds, col+" <= "+args.add(sqlParam(f.Value)))
		case OpIn:
			conds = append(conds, col+"::text = ANY("+args.add(pq.Array(inValues(f.Value)))+")")
		case OpIs:
			conds = append(conds, col+" IS NULL")
		}
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func orderClause(alias string, order []Order) string {
	if len(order) == 0 {
		return ""
	}
	parts := make([]string, 0, len(order))
	for _, o := range order {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, alias+"."+pq.QuoteIdentifier(o.Column)+" "+dir)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func selectSQL(q Query, args *sqlArgs) string {
	table := pq.QuoteIdentifier(q.Table)
	var sb strings.Builder
	if q.Embed != nil {
		parent := pq.QuoteIdentifier(q.Embed.Table)
		fmt.Fprintf(&sb, "SELECT to_jsonb(t.*) || jsonb_build_object(%s, to_jsonb(p.*)) FROM %s t LEFT JOIN %s p ON p.id = t.%s",
			pq.QuoteLiteral(q.Embed.Table), table, parent, pq.QuoteIdentifier(q.Embed.ForeignKey))
	} else {
		fmt.Fprintf(&sb, "SELECT to_jsonb(t.*) FROM %s t", table)
	}
	sb.WriteString(whereClause("t", q.Filters, args))
	sb.WriteString(orderClause("t", q.Order))
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}
	return sb.String()
}

// columnsOf returns sorted column names for a stable statement text.
func columnsOf(values Record) []string {
	cols := make([]string, 0, len(values))
	for k := range values {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func quoteAll(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

func (db *PostgresDatabase) queryRows(ctx context.Context, query string, args ...interface{}) ([]json.RawMessage, error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		out = append(out, json.RawMessage(raw))
	}
	return out, rows.Err()
}

// FindOne 查询单条记录
func (db *PostgresDatabase) FindOne(ctx context.Context, q Query, dest interface{}) error {
	q.Limit = 1
	var args sqlArgs
	var raw []byte
	err := db.db.QueryRowContext(ctx, selectSQL(q, &args), args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRows
	}
	if err != nil {
		return storeErr("find", q.Table, err)
	}
	return storeErr("find", q.Table, decodeInto(raw, dest))
}

// FindMany 查询多条记录
func (db *PostgresDatabase) FindMany(ctx context.Context, q Query, dest interface{}) error {
	var args sqlArgs
	rows, err := db.queryRows(ctx, selectSQL(q, &args), args...)
	if err != nil {
		return storeErr("list", q.Table, err)
	}
	if rows == nil {
		rows = []json.RawMessage{}
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return storeErr("list", q.Table, err)
	}
	return storeErr("list", q.Table, decodeInto(raw, dest))
}

// Insert 插入记录
func (db *PostgresDatabase) Insert(ctx context.Context, table string, values Record, dest interface{}) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return storeErr("insert", table, err)
	}
	cols := quoteAll(columnsOf(values))
	t := pq.QuoteIdentifier(table)
	query := fmt.Sprintf(
		`INSERT INTO %s AS t (%s) SELECT %s FROM json_populate_record(NULL::%s, $1::json) RETURNING to_jsonb(t.*)`,
		t, cols, cols, t)

	var raw []byte
	if err := db.db.QueryRowContext(ctx, query, string(payload)).Scan(&raw); err != nil {
		return storeErr("insert", table, err)
	}
	return storeErr("insert", table, decodeInto(raw, dest))
}

// Update 按ID更新记录
func (db *PostgresDatabase) Update(ctx context.Context, table, id string, patch Record, dest interface{}) error {
	payload, err := json.Marshal(patch)
	if err != nil {
		return storeErr("update", table, err)
	}
	cols := quoteAll(columnsOf(patch))
	t := pq.QuoteIdentifier(table)
	query := fmt.Sprintf(
		`UPDATE %s AS t SET (%s) = (SELECT %s FROM json_populate_record(NULL::%s, $1::json)) WHERE t.id::text = $2 RETURNING to_jsonb(t.*)`,
		t, cols, cols, t)

	var raw []byte
	err = db.db.QueryRowContext(ctx, query, string(payload), id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRows
	}
	if err != nil {
		return storeErr("update", table, err)
	}
	return storeErr("update", table, decodeInto(raw, dest))
}

// UpdateWhere 批量更新
func (db *PostgresDatabase) UpdateWhere(ctx context.Context, table string, filters []Filter, patch Record) (int, error) {
	if len(filters) == 0 {
		return 0, storeErr("update", table, fmt.Errorf("refusing unfiltered bulk update"))
	}
	payload, err := json.Marshal(patch)
	if err != nil {
		return 0, storeErr("update", table, err)
	}
	args := sqlArgs{string(payload)}
	cols := quoteAll(columnsOf(patch))
	t := pq.QuoteIdentifier(table)
	query := fmt.Sprintf(
		`UPDATE %s AS t SET (%s) = (SELECT %s FROM json_populate_record(NULL::%s, $1::json))`,
		t, cols, cols, t) + whereClause("t", filters, &args)

	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storeErr("update", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("update", table, err)
	}
	return int(n), nil
}

// Upsert 插入或按冲突键更新（ON CONFLICT ... DO UPDATE）
func (db *PostgresDatabase) Upsert(ctx context.Context, table string, values Record, conflictKeys []string, dest interface{}) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return storeErr("upsert", table, err)
	}
	columns := columnsOf(values)
	isKey := make(map[string]bool, len(conflictKeys))
	for _, k := range conflictKeys {
		isKey[k] = true
	}
	var sets []string
	for _, c := range columns {
		if !isKey[c] {
			q := pq.QuoteIdentifier(c)
			sets = append(sets, q+" = EXCLUDED."+q)
		}
	}
	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	cols := quoteAll(columns)
	t := pq.QuoteIdentifier(table)
	query := fmt.Sprintf(
		`INSERT INTO %s AS t (%s) SELECT %s FROM json_populate_record(NULL::%s, $1::json) ON CONFLICT (%s) %s RETURNING to_jsonb(t.*)`,
		t, cols, cols, t, quoteAll(conflictKeys), action)

	var raw []byte
	err = db.db.QueryRowContext(ctx, query, string(payload)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRows
	}
	if err != nil {
		return storeErr("upsert", table, err)
	}
	return storeErr("upsert", table, decodeInto(raw, dest))
}

// HealthCheck 健康检查
func (db *PostgresDatabase) HealthCheck(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

// Close 关闭连接
func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
