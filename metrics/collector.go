package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/leeforge/tenantkit/json"
)

// Collector 指标收集器
type Collector struct {
	metrics map[string]*Metric
	mu      sync.RWMutex
}

// Metric 指标
type Metric struct {
	Type      string            `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	History   []float64         `json:"history,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// NewCollector 创建指标收集器
func NewCollector() *Collector {
	return &Collector{
		metrics: make(map[string]*Metric),
	}
}

// IncCounter 增加计数器
func (c *Collector) IncCounter(name string, labels map[string]string) {
	c.AddCounter(name, 1, labels)
}

// AddCounter 增加计数器值
func (c *Collector) AddCounter(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := buildKey(name, labels)
	if metric, exists := c.metrics[key]; exists {
		metric.Value += value
		metric.Timestamp = time.Now().Unix()
	} else {
		c.metrics[key] = &Metric{
			Type:      "counter",
			Value:     value,
			Labels:    labels,
			Timestamp: time.Now().Unix(),
		}
	}
}

// SetGauge 设置仪表值
func (c *Collector) SetGauge(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := buildKey(name, labels)
	c.metrics[key] = &Metric{
		Type:      "gauge",
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now().Unix(),
	}
}

// ObserveHistogram 观察直方图
func (c *Collector) ObserveHistogram(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := buildKey(name, labels)
	if metric, exists := c.metrics[key]; exists {
		metric.History = append(metric.History, value)
		if len(metric.History) > 100 {
			metric.History = metric.History[1:]
		}
		metric.Value = value
		metric.Timestamp = time.Now().Unix()
	} else {
		c.metrics[key] = &Metric{
			Type:      "histogram",
			Value:     value,
			Labels:    labels,
			History:   []float64{value},
			Timestamp: time.Now().Unix(),
		}
	}
}

// RecordRequest 记录 HTTP 请求
func (c *Collector) RecordRequest(tenant string, status int, duration float64) {
	labels := map[string]string{
		"tenant": tenant,
		"status": strconv.Itoa(status),
	}

	c.IncCounter("http_requests_total", labels)
	c.ObserveHistogram("http_request_duration_seconds", duration, map[string]string{"tenant": tenant})
}

// RecordConstruction 记录资源构造结果
func (c *Collector) RecordConstruction(tenant, kind string, duration time.Duration, err error) {
	labels := map[string]string{
		"tenant": tenant,
		"kind":   kind,
		"result": "ok",
	}
	if err != nil {
		labels["result"] = "error"
	}

	c.IncCounter("resource_constructions_total", labels)
	c.ObserveHistogram("resource_construction_seconds", duration.Seconds(), map[string]string{"kind": kind})
}

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string, hit bool) {
	labels := map[string]string{
		"type": cacheType,
	}

	c.IncCounter("cache_requests_total", labels)
	if hit {
		c.IncCounter("cache_hits_total", labels)
	} else {
		c.IncCounter("cache_misses_total", labels)
	}
}

// buildKey 构建指标键，标签按键名排序
func buildKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(name)
	for _, k := range keys {
		sb.WriteString(":" + k + "=" + labels[k])
	}
	return sb.String()
}

// GetMetrics 获取所有指标
func (c *Collector) GetMetrics() map[string]Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// 返回副本
	result := make(map[string]Metric, len(c.metrics))
	for k, v := range c.metrics {
		result[k] = v.snapshot()
	}
	return result
}

// GetMetric 获取单个指标
func (c *Collector) GetMetric(name string, labels map[string]string) (Metric, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.metrics[buildKey(name, labels)]
	if !ok {
		return Metric{}, false
	}
	return m.snapshot(), true
}

// Reset 重置指标
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = make(map[string]*Metric)
}

func (m *Metric) snapshot() Metric {
	out := *m
	if m.History != nil {
		out.History = append([]float64(nil), m.History...)
	}
	return out
}

// MetricsHandler 指标处理器
type MetricsHandler struct {
	collector *Collector
}

// NewMetricsHandler 创建指标处理器
func NewMetricsHandler(collector *Collector) *MetricsHandler {
	return &MetricsHandler{
		collector: collector,
	}
}

// ServeHTTP 实现 http.Handler
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.collector.GetMetrics())
}
