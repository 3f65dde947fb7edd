package database

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrNoRows is returned by FindOne and Update when nothing matches.
var ErrNoRows = errors.New("database: no matching record")

// StoreError wraps a backend failure with the operation and table involved.
type StoreError struct {
	Op    string
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op, table string, err error) error {
	if err == nil || errors.Is(err, ErrNoRows) {
		return err
	}
	return &StoreError{Op: op, Table: table, Err: err}
}

// Record is a row patch or insert payload keyed by column name.
type Record map[string]interface{}

// Operator 过滤运算符（与 PostgREST 同名）
type Operator string

const (
	OpEq  Operator = "eq"
	OpNeq Operator = "neq"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
	OpIn  Operator = "in"
	OpIs  Operator = "is" // only "IS NULL"; Value is ignored
)

// Filter is a single column predicate. Filters in a Query are ANDed.
type Filter struct {
	Column string
	Op     Operator
	Value  interface{}
}

func Eq(column string, value interface{}) Filter  { return Filter{Column: column, Op: OpEq, Value: value} }
func Neq(column string, value interface{}) Filter { return Filter{Column: column, Op: OpNeq, Value: value} }
func Gt(column string, value interface{}) Filter  { return Filter{Column: column, Op: OpGt, Value: value} }
func Gte(column string, value interface{}) Filter { return Filter{Column: column, Op: OpGte, Value: value} }
func Lt(column string, value interface{}) Filter  { return Filter{Column: column, Op: OpLt, Value: value} }
func Lte(column string, value interface{}) Filter { return Filter{Column: column, Op: OpLte, Value: value} }
func IsNull(column string) Filter                 { return Filter{Column: column, Op: OpIs} }

// In matches any of values.
func In(column string, values ...interface{}) Filter {
	return Filter{Column: column, Op: OpIn, Value: values}
}

// Order 排序
type Order struct {
	Column string
	Desc   bool
}

// Embed joins the parent row referenced by ForeignKey and nests it under the
// parent table's name, the way PostgREST renders `select=*,parent(*)`.
type Embed struct {
	Table      string
	ForeignKey string
}

// Query describes a read against one table.
type Query struct {
	Table   string
	Filters []Filter
	Order   []Order
	Limit   int
	Embed   *Embed
}

// DatabaseInterface 定义记录存储访问接口
//
// Rows are exchanged as JSON: dest arguments are pointers that the row (or a
// slice of rows for FindMany) is decoded into, so models only need json tags.
// A nil dest discards the returned row.
type DatabaseInterface interface {
	FindOne(ctx context.Context, q Query, dest interface{}) error
	FindMany(ctx context.Context, q Query, dest interface{}) error
	Insert(ctx context.Context, table string, values Record, dest interface{}) error
	// Update patches the row with the given id.
	Update(ctx context.Context, table, id string, patch Record, dest interface{}) error
	// UpdateWhere patches every matching row and returns how many changed.
	UpdateWhere(ctx context.Context, table string, filters []Filter, patch Record) (int, error)
	// Upsert inserts or, on conflict over conflictKeys, updates in place.
	Upsert(ctx context.Context, table string, values Record, conflictKeys []string, dest interface{}) error

	HealthCheck(ctx context.Context) error
	Kind() string
	Close() error
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	UseLocalDB   bool
	LocalDataDir string
	PostgresDSN  string
	SupabaseURL  string
	SupabaseKey  string
	Debug        bool
}

// NewDatabase 根据环境与配置选择数据库实现
func NewDatabase(config DatabaseConfig) (DatabaseInterface, error) {
	if IsVercelEnvironment() {
		// Vercel 优先使用 Supabase（避免 IPv6）
		if config.SupabaseURL != "" && config.SupabaseKey != "" {
			return NewSupabaseDatabase(config.SupabaseURL, config.SupabaseKey), nil
		}
		if config.PostgresDSN != "" {
			return NewPostgresDatabase(config.PostgresDSN)
		}
		return nil, fmt.Errorf("no valid database configured for Vercel environment: set SUPABASE_URL+SUPABASE_SERVICE_KEY or POSTGRES_DSN")
	}

	// 非 Vercel 环境：PostgreSQL > Supabase > 本地文件
	if config.PostgresDSN != "" {
		return NewPostgresDatabase(config.PostgresDSN)
	}
	if config.SupabaseURL != "" && config.SupabaseKey != "" {
		return NewSupabaseDatabase(config.SupabaseURL, config.SupabaseKey), nil
	}
	if config.UseLocalDB {
		return NewLocalDatabase(config.LocalDataDir)
	}

	return nil, fmt.Errorf("no valid database configuration found: configure POSTGRES_DSN, SUPABASE_URL+SUPABASE_SERVICE_KEY or USE_LOCAL_DB")
}

// IsVercelEnvironment 检查是否运行在 Vercel / Lambda
func IsVercelEnvironment() bool {
	return os.Getenv("VERCEL_ENV") != "" || os.Getenv("VERCEL_URL") != "" || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}
