package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mom-support-backend/pkg/models"
)

// LocalDatabase 本地文件数据库实现，每张表一个 JSON 文件
//
// Intended for development and tests; it evaluates filters in process and
// does not enforce unique constraints beyond Upsert's conflict keys.
type LocalDatabase struct {
	dataDir string
	mu      sync.Mutex
}

type row = map[string]interface{}

// NewLocalDatabase 创建本地数据库实例
func NewLocalDatabase(dataDir string) (*LocalDatabase, error) {
	if dataDir == "" {
		dataDir = "./data"
	}

	// 在Vercel等只读文件系统中，回退到临时目录
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		slog.Warn("failed to create data directory, falling back to temp dir", "dir", dataDir, "error", err)
		dataDir = filepath.Join(os.TempDir(), "mom-support-data")
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return &LocalDatabase{dataDir: dataDir}, nil
}

func (db *LocalDatabase) Kind() string { return "local" }

func (db *LocalDatabase) tablePath(table string) string {
	return filepath.Join(db.dataDir, table+".json")
}

// loadTable 读取整张表；文件不存在视为空表
func (db *LocalDatabase) loadTable(table string) ([]row, error) {
	data, err := os.ReadFile(db.tablePath(table))
	if os.IsNotExist(err) {
		return []row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read table file: %w", err)
	}

	var rows []row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse table file: %w", err)
	}
	return rows, nil
}

// saveTable 原子写回整张表
func (db *LocalDatabase) saveTable(table string, rows []row) error {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode table: %w", err)
	}
	tmp := db.tablePath(table) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write table file: %w", err)
	}
	return os.Rename(tmp, db.tablePath(table))
}

// toRow normalizes Go values to their JSON form so stored rows compare uniformly.
func toRow(values Record) row {
	out := make(row, len(values))
	for k, v := range values {
		out[k] = canonical(v)
	}
	return out
}

func nowValue() interface{} {
	return canonical(time.Now().UTC())
}

// compareValues orders two canonical values; ok is false when they are not comparable.
func compareValues(a, b interface{}) (cmp int, ok bool) {
	switch av := a.(type) {
	case float64:
		bv, isNum := b.(float64)
		if !isNum {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, isBool := b.(bool)
		if !isBool {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	case string:
		bv, isStr := b.(string)
		if !isStr {
			return 0, false
		}
		if at, aok := parseTimeish(av); aok {
			if bt, bok := parseTimeish(bv); bok {
				switch {
				case at.Before(bt):
					return -1, true
				case at.After(bt):
					return 1, true
				}
				return 0, true
			}
		}
		return strings.Compare(av, bv), true
	}
	return 0, false
}

// parseTimeish recognizes timestamps and calendar dates stored as strings.
func parseTimeish(s string) (time.Time, bool) {
	if len(s) < len(models.DateLayout) || s[4] != '-' {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if len(s) == len(models.DateLayout) {
		if t, err := time.Parse(models.DateLayout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func matches(r row, filters []Filter) bool {
	for _, f := range filters {
		actual, present := r[f.Column]
		if f.Op == OpIs {
			if present && actual != nil {
				return false
			}
			continue
		}
		if actual == nil {
			return false
		}

		if f.Op == OpIn {
			found := false
			for _, candidate := range inValues(f.Value) {
				if formatValue(actual) == candidate {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		}

		cmp, ok := compareValues(actual, canonical(f.Value))
		if !ok {
			return false
		}
		switch f.Op {
		case OpEq:
			if cmp != 0 {
				return false
			}
		case OpNeq:
			if cmp == 0 {
				return false
			}
		case OpGt:
			if cmp <= 0 {
				return false
			}
		case OpGte:
			if cmp < 0 {
				return false
			}
		case OpLt:
			if cmp >= 0 {
				return false
			}
		case OpLte:
			if cmp > 0 {
				return false
			}
		}
	}
	return true
}

func sortRows(rows []row, order []Order) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range order {
			cmp, ok := compareValues(rows[i][o.Column], rows[j][o.Column])
			if !ok || cmp == 0 {
				continue
			}
			if o.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// selectRows runs a query; the caller must hold db.mu.
func (db *LocalDatabase) selectRows(q Query) ([]row, error) {
	rows, err := db.loadTable(q.Table)
	if err != nil {
		return nil, err
	}

	var out []row
	for _, r := range rows {
		if matches(r, q.Filters) {
			out = append(out, r)
		}
	}
	sortRows(out, q.Order)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}

	if q.Embed != nil && len(out) > 0 {
		parents, err := db.loadTable(q.Embed.Table)
		if err != nil {
			return nil, err
		}
		for i, r := range out {
			embedded := make(row, len(r)+1)
			for k, v := range r {
				embedded[k] = v
			}
			embedded[q.Embed.Table] = nil
			for _, p := range parents {
				if formatValue(p["id"]) == formatValue(r[q.Embed.ForeignKey]) {
					embedded[q.Embed.Table] = p
					break
				}
			}
			out[i] = embedded
		}
	}
	return out, nil
}

func encodeRow(r interface{}, dest interface{}) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}
	return decodeInto(raw, dest)
}

// FindOne 查询单条记录
func (db *LocalDatabase) FindOne(ctx context.Context, q Query, dest interface{}) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	q.Limit = 1
	rows, err := db.selectRows(q)
	if err != nil {
		return storeErr("find", q.Table, err)
	}
	if len(rows) == 0 {
		return ErrNoRows
	}
	return storeErr("find", q.Table, encodeRow(rows[0], dest))
}

// FindMany 查询多条记录
func (db *LocalDatabase) FindMany(ctx context.Context, q Query, dest interface{}) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.selectRows(q)
	if err != nil {
		return storeErr("list", q.Table, err)
	}
	if rows == nil {
		rows = []row{}
	}
	return storeErr("list", q.Table, encodeRow(rows, dest))
}

// insertLocked appends a row; the caller must hold db.mu.
func (db *LocalDatabase) insertLocked(table string, values Record) (row, error) {
	rows, err := db.loadTable(table)
	if err != nil {
		return nil, err
	}

	r := toRow(values)
	if id, ok := r["id"]; !ok || id == nil || id == "" {
		r["id"] = uuid.New().String()
	}
	if _, ok := r["created_at"]; !ok {
		r["created_at"] = nowValue()
	}

	rows = append(rows, r)
	if err := db.saveTable(table, rows); err != nil {
		return nil, err
	}
	return r, nil
}

// Insert 插入记录
func (db *LocalDatabase) Insert(ctx context.Context, table string, values Record, dest interface{}) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	r, err := db.insertLocked(table, values)
	if err != nil {
		return storeErr("insert", table, err)
	}
	return storeErr("insert", table, encodeRow(r, dest))
}

// applyPatch merges patch into r and stamps updated_at when the row tracks it.
func applyPatch(r row, patch row) {
	for k, v := range patch {
		r[k] = v
	}
	if _, tracked := r["updated_at"]; tracked {
		if _, explicit := patch["updated_at"]; !explicit {
			r["updated_at"] = nowValue()
		}
	}
}

// Update 按ID更新记录
func (db *LocalDatabase) Update(ctx context.Context, table, id string, patch Record, dest interface{}) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.loadTable(table)
	if err != nil {
		return storeErr("update", table, err)
	}
	for _, r := range rows {
		if formatValue(r["id"]) != id {
			continue
		}
		applyPatch(r, toRow(patch))
		if err := db.saveTable(table, rows); err != nil {
			return storeErr("update", table, err)
		}
		return storeErr("update", table, encodeRow(r, dest))
	}
	return ErrNoRows
}

// UpdateWhere 批量更新
func (db *LocalDatabase) UpdateWhere(ctx context.Context, table string, filters []Filter, patch Record) (int, error) {
	if len(filters) == 0 {
		return 0, storeErr("update", table, fmt.Errorf("refusing unfiltered bulk update"))
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.loadTable(table)
	if err != nil {
		return 0, storeErr("update", table, err)
	}
	normalized := toRow(patch)
	count := 0
	for _, r := range rows {
		if matches(r, filters) {
			applyPatch(r, normalized)
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	if err := db.saveTable(table, rows); err != nil {
		return 0, storeErr("update", table, err)
	}
	return count, nil
}

// Upsert 插入或按冲突键更新
func (db *LocalDatabase) Upsert(ctx context.Context, table string, values Record, conflictKeys []string, dest interface{}) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.loadTable(table)
	if err != nil {
		return storeErr("upsert", table, err)
	}

	filters := make([]Filter, 0, len(conflictKeys))
	for _, k := range conflictKeys {
		filters = append(filters, Eq(k, values[k]))
	}
	for _, r := range rows {
		if matches(r, filters) {
			applyPatch(r, toRow(values))
			if err := db.saveTable(table, rows); err != nil {
				return storeErr("upsert", table, err)
			}
			return storeErr("upsert", table, encodeRow(r, dest))
		}
	}

	r, err := db.insertLocked(table, values)
	if err != nil {
		return storeErr("upsert", table, err)
	}
	return storeErr("upsert", table, encodeRow(r, dest))
}

// HealthCheck 健康检查
func (db *LocalDatabase) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(db.dataDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", db.dataDir)
	}
	return nil
}

// Close 关闭连接
func (db *LocalDatabase) Close() error { return nil }
