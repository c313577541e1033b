/**
 * internal/services/websocket.go
 * 开发模式实时刷新服务
 *
 * 功能：
 * - WebSocket 连接管理（连接数限制、Ping/Pong 保活）
 * - 轮询监听静态文件根目录，变化时向所有浏览器广播 reload
 * - 优雅关闭
 *
 * 依赖：
 * - github.com/gorilla/websocket: WebSocket 库
 * - github.com/radovskyb/watcher: 文件轮询监听
 */

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"rareskills-site/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/radovskyb/watcher"
)

// ====================  错误定义 ====================

var (
	// ErrWSServiceShutdown 服务已关闭
	ErrWSServiceShutdown = errors.New("websocket service is shutdown")
	// ErrWSTooManyConnections 连接数已达上限
	ErrWSTooManyConnections = errors.New("too many websocket connections")
)

// ====================  常量定义 ====================

const (
	// LiveReloadPath WebSocket 端点
	LiveReloadPath = "/__livereload"

	// ReloadMessage 通知浏览器刷新的消息
	ReloadMessage = "reload"

	// defaultMaxConnections 默认最大连接数
	defaultMaxConnections = 100

	// writeWait 写入超时
	writeWait = 10 * time.Second

	// pongWait Pong 等待时间
	pongWait = 60 * time.Second

	// pingPeriod Ping 周期（必须小于 pongWait）
	pingPeriod = 30 * time.Second

	// maxMessageSize 最大消息大小
	maxMessageSize = 512

	// sendBufferSize 发送缓冲区大小
	sendBufferSize = 8

	// pollInterval 文件轮询间隔
	pollInterval = 250 * time.Millisecond
)

// LiveReloadScript 注入到 HTML 的客户端脚本
const LiveReloadScript = `<script>(function(){var p=location.protocol==="https:"?"wss://":"ws://";` +
	`var ws=new WebSocket(p+location.host+"` + LiveReloadPath + `");` +
	`ws.onmessage=function(e){if(e.data==="` + ReloadMessage + `"){location.reload();}};})();</script>`

// upgrader WebSocket 升级器（仅开发模式启用，允许所有来源）
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ====================  数据结构 ====================

// wsClient 浏览器连接
type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	closed bool
	mu     sync.Mutex
}

// LiveReloadService 实时刷新服务
type LiveReloadService struct {
	clients    map[*wsClient]struct{}
	mu         sync.RWMutex
	isShutdown bool
	watcher    *watcher.Watcher
	maxConns   int
}

// ====================  构造函数 ====================

// NewLiveReloadService 创建实时刷新服务
func NewLiveReloadService() *LiveReloadService {
	return &LiveReloadService{
		clients:  make(map[*wsClient]struct{}),
		maxConns: defaultMaxConnections,
	}
}

// ====================  公开方法 ====================

// HandleConnection 处理浏览器 WebSocket 连接
func (s *LiveReloadService) HandleConnection(c *gin.Context) {
	if s.IsShutdown() {
		c.String(http.StatusServiceUnavailable, "service unavailable")
		return
	}

	// 快速拒绝；最终以 register 内的检查为准
	if s.ConnectionCount() >= s.maxConns {
		utils.LogPrintf("[LIVERELOAD] WARN: Max connections reached (%d), rejecting new client", s.maxConns)
		c.String(http.StatusServiceUnavailable, "too many connections")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.LogPrintf("[LIVERELOAD] ERROR: WebSocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	if err := s.register(client); err != nil {
		code := websocket.CloseGoingAway
		if errors.Is(err, ErrWSTooManyConnections) {
			utils.LogPrintf("[LIVERELOAD] WARN: Max connections reached (%d), closing upgraded client", s.maxConns)
			code = websocket.CloseTryAgainLater
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, err.Error()),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	go s.writePump(client)
	go s.readPump(client)
}

// Broadcast 向所有客户端发送消息，发送缓冲区满的客户端被移除
func (s *LiveReloadService) Broadcast(message string) int {
	s.mu.RLock()
	clients := make([]*wsClient, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.RUnlock()

	sent := 0
	for _, client := range clients {
		if client.trySend([]byte(message)) {
			sent++
			continue
		}
		s.unregister(client)
	}
	return sent
}

// Watch 监听目录变化并广播 reload，阻塞直到 ctx 结束或监听失败
func (s *LiveReloadService) Watch(ctx context.Context, dir string) error {
	w := watcher.New()
	w.SetMaxEvents(1)
	w.FilterOps(watcher.Create, watcher.Write, watcher.Remove, watcher.Rename, watcher.Move)

	if err := w.AddRecursive(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()

	startErr := make(chan error, 1)
	go func() {
		startErr <- w.Start(pollInterval)
	}()
	defer w.Close()

	utils.LogPrintf("[LIVERELOAD] Watching %s", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-w.Event:
			n := s.Broadcast(ReloadMessage)
			utils.LogPrintf("[LIVERELOAD] %s changed, notified %d clients", event.Path, n)
		case err := <-w.Error:
			utils.LogPrintf("[LIVERELOAD] WARN: Watcher error: %v", err)
		case err := <-startErr:
			return err
		case <-w.Closed:
			return nil
		}
	}
}

// ConnectionCount 当前连接数
func (s *LiveReloadService) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// IsShutdown 检查服务是否已关闭
func (s *LiveReloadService) IsShutdown() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isShutdown
}

// Shutdown 关闭监听与所有连接
func (s *LiveReloadService) Shutdown() {
	s.mu.Lock()
	if s.isShutdown {
		s.mu.Unlock()
		return
	}
	s.isShutdown = true
	w := s.watcher
	clients := s.clients
	s.clients = make(map[*wsClient]struct{})
	s.mu.Unlock()

	if w != nil {
		w.Close()
	}

	for client := range clients {
		_ = client.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(writeWait))
		closeClient(client)
	}

	utils.LogPrintf("[LIVERELOAD] Service shutdown complete")
}

// ====================  私有方法 ====================

// register 注册客户端，关闭状态与连接上限在同一把锁内检查
func (s *LiveReloadService) register(client *wsClient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isShutdown {
		return ErrWSServiceShutdown
	}
	if len(s.clients) >= s.maxConns {
		return ErrWSTooManyConnections
	}
	s.clients[client] = struct{}{}
	return nil
}

// unregister 注销并关闭客户端
func (s *LiveReloadService) unregister(client *wsClient) {
	s.mu.Lock()
	_, ok := s.clients[client]
	delete(s.clients, client)
	s.mu.Unlock()

	if ok {
		closeClient(client)
	}
}

// trySend 非阻塞发送，连接已关闭或缓冲区满时返回 false
func (c *wsClient) trySend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// closeClient 关闭发送通道与连接（可重复调用）
func closeClient(client *wsClient) {
	client.mu.Lock()
	defer client.mu.Unlock()

	if client.closed {
		return
	}
	client.closed = true
	close(client.send)
	_ = client.conn.Close()
}

// writePump 写入协程
func (s *LiveReloadService) writePump(client *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取协程（只处理 Pong 与关闭）
func (s *LiveReloadService) readPump(client *wsClient) {
	defer s.unregister(client)

	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
