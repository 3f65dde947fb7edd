package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SupabaseDatabase Supabase REST (PostgREST) 实现
type SupabaseDatabase struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSupabaseDatabase 创建Supabase数据库实例
func NewSupabaseDatabase(url, key string) *SupabaseDatabase {
	// 确保URL格式正确
	if !strings.HasPrefix(url, "http") {
		url = "https://" + url
	}

	return &SupabaseDatabase{
		baseURL: strings.TrimSuffix(url, "/"),
		apiKey:  key,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (db *SupabaseDatabase) Kind() string { return "supabase" }

// makeRequest 发送HTTP请求到Supabase
func (db *SupabaseDatabase) makeRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	return db.makeRequestWithHeaders(ctx, method, endpoint, body, nil)
}

// makeRequestWithHeaders 发送HTTP请求到Supabase（支持自定义头）
func (db *SupabaseDatabase) makeRequestWithHeaders(ctx context.Context, method, endpoint string, body interface{}, customHeaders map[string]string) ([]byte, error) {
	var reqBody io.Reader

	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, db.baseURL+"/rest/v1"+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// 设置请求头
	req.Header.Set("apikey", db.apiKey)
	req.Header.Set("Authorization", "Bearer "+db.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")
	for k, v := range customHeaders {
		req.Header.Set(k, v)
	}

	resp, err := db.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// buildQuery 将 Query 转成 PostgREST 查询串
func buildQuery(q Query) string {
	params := url.Values{}

	selectClause := "*"
	if q.Embed != nil {
		selectClause = fmt.Sprintf("*,%s(*)", q.Embed.Table)
	}
	params.Set("select", selectClause)

	encodeFilters(params, q.Filters)

	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts = append(parts, o.Column+"."+dir)
		}
		params.Set("order", strings.Join(parts, ","))
	}

	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	return "/" + q.Table + "?" + params.Encode()
}

func encodeFilters(params url.Values, filters []Filter) {
	for _, f := range filters {
		switch f.Op {
		case OpIn:
			vals := inValues(f.Value)
			quoted := make([]string, len(vals))
			for i, v := range vals {
				quoted[i] = strconv.Quote(v)
			}
			params.Add(f.Column, "in.("+strings.Join(quoted, ",")+")")
		case OpIs:
			params.Add(f.Column, "is.null")
		default:
			params.Add(f.Column, string(f.Op)+"."+formatValue(f.Value))
		}
	}
}

// FindOne 查询单条记录
func (db *SupabaseDatabase) FindOne(ctx context.Context, q Query, dest interface{}) error {
	q.Limit = 1
	body, err := db.makeRequest(ctx, http.MethodGet, buildQuery(q), nil)
	if err != nil {
		return storeErr("find", q.Table, err)
	}
	row, err := firstRow(body)
	if err != nil {
		return storeErr("find", q.Table, err)
	}
	return storeErr("find", q.Table, decodeInto(row, dest))
}

// FindMany 查询多条记录
func (db *SupabaseDatabase) FindMany(ctx context.Context, q Query, dest interface{}) error {
	body, err := db.makeRequest(ctx, http.MethodGet, buildQuery(q), nil)
	if err != nil {
		return storeErr("list", q.Table, err)
	}
	return storeErr("list", q.Table, decodeInto(body, dest))
}

// Insert 插入记录
func (db *SupabaseDatabase) Insert(ctx context.Context, table string, values Record, dest interface{}) error {
	body, err := db.makeRequest(ctx, http.MethodPost, "/"+table, values)
	if err != nil {
		return storeErr("insert", table, err)
	}
	row, err := firstRow(body)
	if err != nil {
		return storeErr("insert", table, err)
	}
	return storeErr("insert", table, decodeInto(row, dest))
}

// Update 按ID更新记录
func (db *SupabaseDatabase) Update(ctx context.Context, table, id string, patch Record, dest interface{}) error {
	params := url.Values{}
	params.Set("id", "eq."+id)
	body, err := db.makeRequest(ctx, http.MethodPatch, "/"+table+"?"+params.Encode(), patch)
	if err != nil {
		return storeErr("update", table, err)
	}
	row, err := firstRow(body)
	if err != nil {
		return storeErr("update", table, err)
	}
	return storeErr("update", table, decodeInto(row, dest))
}

// UpdateWhere 批量更新
func (db *SupabaseDatabase) UpdateWhere(ctx context.Context, table string, filters []Filter, patch Record) (int, error) {
	if len(filters) == 0 {
		return 0, storeErr("update", table, fmt.Errorf("refusing unfiltered bulk update"))
	}
	params := url.Values{}
	encodeFilters(params, filters)
	body, err := db.makeRequest(ctx, http.MethodPatch, "/"+table+"?"+params.Encode(), patch)
	if err != nil {
		return 0, storeErr("update", table, err)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return 0, storeErr("update", table, fmt.Errorf("failed to decode rows: %w", err))
	}
	return len(rows), nil
}

// Upsert 插入或按冲突键更新
func (db *SupabaseDatabase) Upsert(ctx context.Context, table string, values Record, conflictKeys []string, dest interface{}) error {
	endpoint := "/" + table + "?on_conflict=" + url.QueryEscape(strings.Join(conflictKeys, ","))
	headers := map[string]string{
		"Prefer": "resolution=merge-duplicates,return=representation",
	}
	body, err := db.makeRequestWithHeaders(ctx, http.MethodPost, endpoint, values, headers)
	if err != nil {
		return storeErr("upsert", table, err)
	}
	row, err := firstRow(body)
	if err != nil {
		return storeErr("upsert", table, err)
	}
	return storeErr("upsert", table, decodeInto(row, dest))
}

// HealthCheck 健康检查
func (db *SupabaseDatabase) HealthCheck(ctx context.Context) error {
	_, err := db.makeRequest(ctx, http.MethodGet, "/subscription_plans?select=id&limit=1", nil)
	return err
}

// Close 关闭连接
func (db *SupabaseDatabase) Close() error {
	db.httpClient.CloseIdleConnections()
	return nil
}
