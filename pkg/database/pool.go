package database

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Factory builds a store from config; NewDatabase is the production factory.
type Factory func(DatabaseConfig) (DatabaseInterface, error)

// Pool 复用数据库连接：配置变化、空闲过久或健康检查失败时重建
//
// A serverless handler keeps one Pool per warm instance instead of dialing
// per request.
type Pool struct {
	factory Factory
	maxIdle time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	instance DatabaseInterface
	config   DatabaseConfig
	lastUsed time.Time
}

// NewPool 创建连接池
func NewPool(factory Factory, maxIdle time.Duration, logger *slog.Logger) *Pool {
	if factory == nil {
		factory = NewDatabase
	}
	if maxIdle <= 0 {
		maxIdle = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{factory: factory, maxIdle: maxIdle, logger: logger}
}

// Get 获取数据库连接（必要时重建）
func (p *Pool) Get(ctx context.Context, config DatabaseConfig) (DatabaseInterface, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.instance != nil && !p.shouldRecreate(ctx, config) {
		p.lastUsed = time.Now()
		return p.instance, nil
	}

	if p.instance != nil {
		if err := p.instance.Close(); err != nil {
			p.logger.Warn("failed to close previous database connection", "error", err)
		}
		p.instance = nil
	}

	instance, err := p.factory(config)
	if err != nil {
		return nil, err
	}
	p.logger.Info("database connection created", "kind", instance.Kind())
	p.instance = instance
	p.config = config
	p.lastUsed = time.Now()
	return instance, nil
}

// shouldRecreate 判断是否需要重新创建连接；调用方持有锁
func (p *Pool) shouldRecreate(ctx context.Context, config DatabaseConfig) bool {
	if p.config != config {
		p.logger.Info("database configuration changed, recreating connection")
		return true
	}

	if time.Since(p.lastUsed) > p.maxIdle {
		p.logger.Info("database connection idle too long, recreating")
		return true
	}

	if err := p.instance.HealthCheck(ctx); err != nil {
		p.logger.Warn("database health check failed, recreating", "error", err)
		return true
	}

	return false
}

// Stats 获取连接池统计信息
func (p *Pool) Stats() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.instance == nil {
		return map[string]interface{}{
			"status":    "no_connection",
			"last_used": nil,
		}
	}

	return map[string]interface{}{
		"status":    "connected",
		"kind":      p.instance.Kind(),
		"last_used": p.lastUsed.Format(time.RFC3339),
		"idle_for":  time.Since(p.lastUsed).String(),
	}
}

// Close 关闭当前连接
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.instance == nil {
		return nil
	}
	err := p.instance.Close()
	p.instance = nil
	return err
}
