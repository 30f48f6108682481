// Package feed 实现行情帧 WebSocket 客户端。
// 心跳机制: 协议层 ping/pong
// 断线后按指数退避重连，帧通道已满时丢弃新帧。
package feed

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"arbitrage-cache-engine/internal/config"
	"arbitrage-cache-engine/internal/core/model"
	"arbitrage-cache-engine/internal/util/backoff"
	"arbitrage-cache-engine/internal/util/timeutil"
)

// Client 行情帧 WebSocket 客户端
type Client struct {
	// cfg 行情源配置
	cfg *config.FeedConfig
	// logger 日志记录器
	logger *zap.Logger
	// parser 帧解析器
	parser *Parser

	conn   *websocket.Conn
	connMu sync.Mutex

	// tickCh 节拍输出通道，Run 返回时关闭
	tickCh chan *model.Tick

	metrics   ConnectionMetrics
	metricsMu sync.RWMutex

	// lastMsgTime 最后消息时间（纳秒）
	lastMsgTime int64
	// tickCount 已投递帧数（用于计算速率）
	tickCount int64
	backoff   *backoff.Backoff
	closed    int32

	// parseErrSampleCount 解析错误计数（用于采样日志）
	parseErrSampleCount uint64
	// lastParseErrLogNs 上次解析错误日志时间（纳秒）
	lastParseErrLogNs int64
}

// NewClient 创建行情帧客户端
// 参数 cfg: 行情源配置
// 参数 logger: 日志记录器
func NewClient(cfg *config.FeedConfig, logger *zap.Logger) *Client {
	size := cfg.ChannelSize
	if size <= 0 {
		size = 1000
	}
	return &Client{
		cfg:    cfg,
		logger: logger.Named("feed"),
		parser: NewParser(),
		tickCh: make(chan *model.Tick, size),
		backoff: backoff.New(backoff.Policy{
			Base:   time.Duration(cfg.ReconnectBaseMs) * time.Millisecond,
			Max:    time.Duration(cfg.ReconnectMaxMs) * time.Millisecond,
			Jitter: backoff.DefaultPolicy.Jitter,
		}),
	}
}

// Connect 建立 WebSocket 连接
// 参数 ctx: 上下文，用于取消连接
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	header := http.Header{}
	header.Set("User-Agent", "arbitrage-cache-engine/1.0")

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("连接行情源失败: %w", err)
	}

	readTimeout := c.readTimeout()
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		atomic.StoreInt64(&c.lastMsgTime, timeutil.NowNano())
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	c.conn = conn
	c.backoff.Reset()
	c.logger.Info("行情源连接成功", zap.String("url", c.cfg.URL))
	return nil
}

// Run 启动客户端主循环，阻塞直到 ctx 取消或客户端关闭
// 返回时关闭节拍通道。
func (c *Client) Run(ctx context.Context) error {
	defer close(c.tickCh)

	c.connMu.Lock()
	connected := c.conn != nil
	c.connMu.Unlock()
	if !connected {
		if err := c.Connect(ctx); err != nil {
			c.logger.Warn("首次连接行情源失败，稍后重试", zap.Error(err))
		}
	}

	// ctx 取消时关闭连接以中断阻塞中的读取
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.closeConn()
		case <-stop:
		}
	}()

	go c.pingLoop(ctx)
	go c.metricsLoop(ctx)
	c.readLoop(ctx)

	c.closeConn()
	return nil
}

func (c *Client) readLoop(ctx context.Context) {
	readTimeout := c.readTimeout()
	for {
		if ctx.Err() != nil || c.isClosed() {
			return
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			c.reconnect(ctx)
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || c.isClosed() {
				return
			}
			c.logger.Warn("读取行情帧失败", zap.Error(err))
			c.incrementReconnectCount()
			c.reconnect(ctx)
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		atomic.StoreInt64(&c.lastMsgTime, timeutil.NowNano())

		tick, err := c.parser.Parse(data)
		if err != nil {
			c.incrementParseErrorCount()
			c.maybeLogParseError(err, data)
			continue
		}

		select {
		case c.tickCh <- tick:
			atomic.AddInt64(&c.tickCount, 1)
		default:
			c.incrementDroppedCount()
		}
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	intervalMs := c.cfg.PingIntervalMs
	if intervalMs <= 0 {
		intervalMs = int(c.readTimeout()/time.Millisecond) / 2
	}

	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.isClosed() {
				return
			}

			c.connMu.Lock()
			conn := c.conn
			if conn == nil {
				c.connMu.Unlock()
				continue
			}
			deadline := time.Now().Add(5 * time.Second)
			err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline)
			c.connMu.Unlock()
			if err != nil {
				c.logger.Warn("发送 ping 失败", zap.Error(err))
			}
		}
	}
}

func (c *Client) metricsLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastCount int64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.isClosed() {
				return
			}

			count := atomic.LoadInt64(&c.tickCount)
			rate := float64(count - lastCount)
			lastCount = count

			var ageMs int64
			if lastMsg := atomic.LoadInt64(&c.lastMsgTime); lastMsg > 0 {
				ageMs = timeutil.SinceNano(lastMsg) / 1_000_000
			}

			c.metricsMu.Lock()
			c.metrics.TicksPerSec = rate
			c.metrics.LastMessageAgeMs = ageMs
			c.metricsMu.Unlock()
		}
	}
}

func (c *Client) reconnect(ctx context.Context) {
	c.closeConn()

	delay := c.backoff.Next()
	c.logger.Info("准备重连行情源", zap.Duration("delay", delay), zap.Int("attempt", c.backoff.Attempt()))

	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}
	if c.isClosed() {
		return
	}

	if err := c.Connect(ctx); err != nil {
		c.logger.Error("重连行情源失败", zap.Error(err))
	}
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Close 关闭客户端，中断正在进行的读取
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.closeConn()
	c.logger.Info("行情源客户端已关闭")
	return nil
}

// TickCh 获取节拍通道
func (c *Client) TickCh() <-chan *model.Tick {
	return c.tickCh
}

// Metrics 获取连接指标
func (c *Client) Metrics() ConnectionMetrics {
	c.metricsMu.RLock()
	defer c.metricsMu.RUnlock()
	return c.metrics
}

func (c *Client) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *Client) incrementReconnectCount() {
	c.metricsMu.Lock()
	c.metrics.ReconnectCount++
	c.metricsMu.Unlock()
}

func (c *Client) incrementParseErrorCount() {
	c.metricsMu.Lock()
	c.metrics.ParseErrorCount++
	c.metricsMu.Unlock()
}

func (c *Client) incrementDroppedCount() {
	c.metricsMu.Lock()
	c.metrics.DroppedCount++
	c.metricsMu.Unlock()
}

func (c *Client) readTimeout() time.Duration {
	if c.cfg.ReadTimeoutMs > 0 {
		return time.Duration(c.cfg.ReadTimeoutMs) * time.Millisecond
	}
	return 30 * time.Second
}

// maybeLogParseError 采样记录解析错误原始消息
// 采样策略：第 1 次及此后每 100 次记录 1 条，且至少间隔 1 分钟。
func (c *Client) maybeLogParseError(err error, data []byte) {
	count := atomic.AddUint64(&c.parseErrSampleCount, 1)
	if count != 1 && count%100 != 0 {
		return
	}

	nowNs := timeutil.NowNano()
	last := atomic.LoadInt64(&c.lastParseErrLogNs)
	if last > 0 && nowNs-last < int64(time.Minute) {
		return
	}
	atomic.StoreInt64(&c.lastParseErrLogNs, nowNs)

	sample := data
	if len(sample) > 200 {
		sample = sample[:200]
	}
	c.logger.Warn("解析行情帧失败（采样）", zap.Error(err), zap.ByteString("data", sample))
}
