package consumer

import (
	"sync"
	"time"
)

// Metrics 消费者指标
type Metrics struct {
	mu sync.RWMutex

	MessagesProcessed int64 // 处理的消息总数
	MessagesSucceeded int64
	MessagesFailed    int64 // 未确认，等待重投
	MessagesDropped   int64 // 不可恢复（解析失败、记录不存在），已确认
	MessagesReclaimed int64 // 从其他消费者认领的超时消息

	ErrorsParse            int64
	ErrorsNotFound         int64
	ErrorsCommitFailed     int64
	ErrorsStoreUnavailable int64

	TotalProcessingTime time.Duration
	LastProcessTime     time.Time
	StartTime           time.Time
}

// GetSnapshot 获取指标快照
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		MessagesProcessed:      m.MessagesProcessed,
		MessagesSucceeded:      m.MessagesSucceeded,
		MessagesFailed:         m.MessagesFailed,
		MessagesDropped:        m.MessagesDropped,
		MessagesReclaimed:      m.MessagesReclaimed,
		ErrorsParse:            m.ErrorsParse,
		ErrorsNotFound:         m.ErrorsNotFound,
		ErrorsCommitFailed:     m.ErrorsCommitFailed,
		ErrorsStoreUnavailable: m.ErrorsStoreUnavailable,
		TotalProcessingTime:    m.TotalProcessingTime,
		LastProcessTime:        m.LastProcessTime,
		StartTime:              m.StartTime,
	}
}

func (m *Metrics) incrementProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesProcessed++
}

func (m *Metrics) incrementSucceeded(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesSucceeded++
	m.TotalProcessingTime += duration
	m.LastProcessTime = time.Now()
}

func (m *Metrics) incrementReclaimed(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesReclaimed += int64(n)
}

// incrementError dropped=true 表示消息已确认丢弃
func (m *Metrics) incrementError(errorType string, dropped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dropped {
		m.MessagesDropped++
	} else {
		m.MessagesFailed++
	}
	switch errorType {
	case errorParse:
		m.ErrorsParse++
	case errorNotFound:
		m.ErrorsNotFound++
	case errorCommitFailed:
		m.ErrorsCommitFailed++
	case errorStoreUnavailable:
		m.ErrorsStoreUnavailable++
	}
}
