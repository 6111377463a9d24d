package service

import (
	"sync"
	"time"
)

// Monitor 监控服务，用于统计错误和业务指标
type Monitor struct {
	mu sync.RWMutex

	// 错误统计
	RedisErrors  int64
	NotifyErrors int64
	DBErrors     int64

	// 业务统计
	CartAdds             int64
	DuplicateSubmissions int64
	OrdersCreated        int64
	OrderCreateFailed    int64
	StockDeductions      int64
	OversoldAlerts       int64
	ConcurrentRetries    int64
	NotifySent           int64

	// 时间统计
	LastRedisError  time.Time
	LastNotifyError time.Time
	LastDBError     time.Time
	LastOrderTime   time.Time
	LastOversold    time.Time
}

var globalMonitor = &Monitor{}

// GetMonitor 获取全局监控实例
func GetMonitor() *Monitor {
	return globalMonitor
}

func (m *Monitor) RecordRedisError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors++
	m.LastRedisError = time.Now()
}

func (m *Monitor) RecordNotifyError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NotifyErrors++
	m.LastNotifyError = time.Now()
}

func (m *Monitor) RecordDBError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DBErrors++
	m.LastDBError = time.Now()
}

func (m *Monitor) RecordCartAdd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CartAdds++
}

// RecordDuplicateSubmission 被防重窗口拦下的加购
func (m *Monitor) RecordDuplicateSubmission() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicateSubmissions++
}

func (m *Monitor) RecordOrderCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrdersCreated++
	m.LastOrderTime = time.Now()
}

func (m *Monitor) RecordOrderCreateFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrderCreateFailed++
}

// RecordStockDeduction 一个订单完成一次扣减
func (m *Monitor) RecordStockDeduction() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StockDeductions++
}

func (m *Monitor) RecordOversold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OversoldAlerts++
	m.LastOversold = time.Now()
}

// RecordConcurrentRetry 乐观锁冲突后重试
func (m *Monitor) RecordConcurrentRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConcurrentRetries++
}

func (m *Monitor) RecordNotifySent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NotifySent++
}

// GetStats 获取统计信息
func (m *Monitor) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	notifySuccessRate := float64(0)
	totalNotify := m.NotifySent + m.NotifyErrors
	if totalNotify > 0 {
		notifySuccessRate = float64(m.NotifySent) / float64(totalNotify) * 100
	}

	return map[string]interface{}{
		"errors": map[string]interface{}{
			"redis":  m.RedisErrors,
			"notify": m.NotifyErrors,
			"db":     m.DBErrors,
		},
		"business": map[string]interface{}{
			"cart_adds":             m.CartAdds,
			"duplicate_submissions": m.DuplicateSubmissions,
			"orders_created":        m.OrdersCreated,
			"order_create_failed":   m.OrderCreateFailed,
			"stock_deductions":      m.StockDeductions,
			"oversold_alerts":       m.OversoldAlerts,
			"concurrent_retries":    m.ConcurrentRetries,
			"notify_sent":           m.NotifySent,
			"notify_success_rate":   notifySuccessRate,
		},
		"last_events": map[string]interface{}{
			"redis_error":   m.LastRedisError,
			"notify_error":  m.LastNotifyError,
			"db_error":      m.LastDBError,
			"last_order":    m.LastOrderTime,
			"last_oversold": m.LastOversold,
		},
	}
}

// Reset 重置统计（用于测试或定期清理）
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors = 0
	m.NotifyErrors = 0
	m.DBErrors = 0
	m.CartAdds = 0
	m.DuplicateSubmissions = 0
	m.OrdersCreated = 0
	m.OrderCreateFailed = 0
	m.StockDeductions = 0
	m.OversoldAlerts = 0
	m.ConcurrentRetries = 0
	m.NotifySent = 0
}
