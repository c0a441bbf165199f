package relay

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"cudisync/internal/server/auth"
)

var ErrPeerClosed = errors.New("peer_closed")
var ErrSendQueueFull = errors.New("send_queue_full")

// Peer Hub 眼中的一条传输连接
//
// Send 与 Ping 必须非阻塞；Terminate 直接断开底层连接，可重复调用。
type Peer interface {
	ID() string
	Addr() string
	Send(data []byte) error
	Ping() error
	Terminate()
}

// PasswordHasher 单向密码哈希
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(plain, digest string) bool
}

// Options 创建 Hub 的依赖
type Options struct {
	Limits      Limits
	Hasher      PasswordHasher
	TokenSource func() (string, error)
	Clock       func() time.Time
	Logger      *slog.Logger
	Metrics     *Metrics
}

// conn 一条已接纳连接的应用状态
type conn struct {
	peer    Peer
	alias   string
	room    string // 所在房间名，未加入时为空
	host    bool
	alive   bool
	pending bool // 有一个 join 正在哈希/校验中
}

// Stats 在线概况
type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

// RoomInfo 房间快照
type RoomInfo struct {
	Name         string
	Host         string
	Members      []string
	HasPassword  bool
	SessionToken string
	CreatedAt    time.Time
}

type registration struct {
	peer  Peer
	reply chan bool
}

type removal struct{ id string }

type delivery struct {
	id  string
	msg Message
}

type pong struct{ id string }

type sweep struct{}

// commit 在 Hub 协程上执行的回调：异步哈希完成后的提交、只读查询
type commit func()

// Hub 持有注册表、连接状态与地址计数的唯一执行上下文
//
// 所有修改都以事件形式进入同一个 channel，由 run 协程顺序处理，
// 同一发送方的事件保持先后顺序。
type Hub struct {
	limits   Limits
	hasher   PasswordHasher
	newToken func() (string, error)
	now      func() time.Time
	logger   *slog.Logger
	metrics  *Metrics

	rooms  *Directory
	gate   *Gate
	conns  map[string]*conn
	doomed []string

	events   chan any
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHub 创建 Hub 并启动事件循环
func NewHub(opts Options) *Hub {
	limits := opts.Limits.withDefaults()
	h := &Hub{
		limits:   limits,
		hasher:   opts.Hasher,
		newToken: opts.TokenSource,
		now:      opts.Clock,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		rooms:    NewDirectory(limits.MaxRoomClients),
		gate:     NewGate(limits.MaxConnsPerAddr),
		conns:    make(map[string]*conn),
		events:   make(chan any, 256),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	if h.hasher == nil {
		h.hasher = auth.NewBcryptHasher(auth.DefaultBcryptCost)
	}
	if h.newToken == nil {
		h.newToken = func() (string, error) { return auth.GenerateSessionToken(auth.DefaultSessionTokenBytes) }
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.metrics == nil {
		h.metrics = NewMetrics(nil)
	}
	go h.run()
	return h
}

func (h *Hub) Limits() Limits       { return h.limits }
func (h *Hub) Metrics() *Metrics    { return h.metrics }
func (h *Hub) Logger() *slog.Logger { return h.logger }

// Register 接纳一条新连接；超出来源地址上限时返回 false，调用方应直接断开
func (h *Hub) Register(p Peer) bool {
	reply := make(chan bool, 1)
	if !h.post(registration{peer: p, reply: reply}) {
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-h.done:
		return false
	}
}

// Unregister 连接关闭或出错时调用，重复调用无副作用
func (h *Hub) Unregister(id string) { h.post(removal{id: id}) }

// Deliver 投递一条已通过检查的入站消息
func (h *Hub) Deliver(id string, msg Message) { h.post(delivery{id: id, msg: msg}) }

// Pong 记录心跳应答
func (h *Hub) Pong(id string) { h.post(pong{id: id}) }

// Sweep 立即执行一轮心跳巡检
func (h *Hub) Sweep() { h.post(sweep{}) }

// Stats 返回当前房间数与连接数
func (h *Hub) Stats() Stats {
	var s Stats
	h.query(func() {
		s = Stats{Rooms: h.rooms.Len(), Connections: len(h.conns)}
	})
	return s
}

// Room 返回房间快照
func (h *Hub) Room(name string) (RoomInfo, bool) {
	var (
		info RoomInfo
		ok   bool
	)
	h.query(func() {
		r, exists := h.rooms.Get(name)
		if !exists {
			return
		}
		ok = true
		info = RoomInfo{
			Name:         r.Name(),
			Host:         r.Host(),
			Members:      r.Members(),
			HasPassword:  r.HasPassword(),
			SessionToken: r.SessionToken(),
			CreatedAt:    r.CreatedAt(),
		}
	})
	return info, ok
}

// AddrCount 返回某来源地址当前的连接数
func (h *Hub) AddrCount(addr string) int {
	var n int
	h.query(func() { n = h.gate.Count(addr) })
	return n
}

// Stop 停止事件循环并断开所有连接
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		<-h.done
		h.wg.Wait()
		h.logger.Info("中继 Hub 已停止")
	})
}

func (h *Hub) post(ev any) bool {
	select {
	case h.events <- ev:
		return true
	case <-h.done:
		return false
	}
}

// query 在 Hub 协程上同步执行 fn
func (h *Hub) query(fn func()) {
	finished := make(chan struct{})
	if !h.post(commit(func() {
		fn()
		close(finished)
	})) {
		return
	}
	select {
	case <-finished:
	case <-h.done:
	}
}

// async 在 Hub 协程之外执行 work，并把它返回的 commit 投递回 Hub 协程
func (h *Hub) async(work func() commit) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.post(work())
	}()
}

func (h *Hub) run() {
	ticker := time.NewTicker(h.limits.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		for _, c := range h.conns {
			c.peer.Terminate()
		}
		close(h.done)
	}()

	for {
		select {
		case ev := <-h.events:
			h.handle(ev)
		case <-ticker.C:
			h.sweep()
		case <-h.stopCh:
			return
		}
		h.reap()
	}
}

func (h *Hub) handle(ev any) {
	switch ev := ev.(type) {
	case registration:
		ev.reply <- h.admit(ev.peer)
	case removal:
		h.cleanup(ev.id)
	case delivery:
		h.dispatch(ev.id, ev.msg)
	case pong:
		if c, ok := h.conns[ev.id]; ok {
			c.alive = true
		}
	case sweep:
		h.sweep()
	case commit:
		ev()
	}
}

// admit 按来源地址限额接纳连接
func (h *Hub) admit(p Peer) bool {
	if _, dup := h.conns[p.ID()]; dup {
		h.logger.Warn("连接 ID 重复，拒绝接入", "peer_id", p.ID())
		return false
	}
	if !h.gate.Acquire(p.Addr()) {
		h.metrics.Rejected.Inc()
		h.logger.Warn("来源地址连接数超限", "addr", p.Addr(), "limit", h.limits.MaxConnsPerAddr)
		return false
	}
	h.conns[p.ID()] = &conn{peer: p, alias: DefaultAlias, alive: true}
	h.metrics.Connections.Set(float64(len(h.conns)))
	h.logger.Debug("连接已接入", "peer_id", p.ID(), "addr", p.Addr())
	return true
}

func (h *Hub) dispatch(id string, msg Message) {
	c, ok := h.conns[id]
	if !ok {
		return
	}
	switch m := msg.(type) {
	case JoinMessage:
		h.join(c, m)
	case SignalMessage:
		h.signal(c, m)
	default:
		h.metrics.drop(nil)
		h.logger.Debug("忽略未知消息类型", "peer_id", id, "type", msg.Kind())
	}
}

// cleanup 连接终止后的清理，对同一连接只生效一次
func (h *Hub) cleanup(id string) {
	c, ok := h.conns[id]
	if !ok {
		return
	}
	delete(h.conns, id)
	h.gate.Release(c.peer.Addr())
	h.metrics.Connections.Set(float64(len(h.conns)))

	if c.room == "" {
		h.logger.Debug("连接已断开", "peer_id", id)
		return
	}
	room, exists := h.rooms.Get(c.room)
	if !exists || !room.Has(id) {
		return
	}
	if c.host {
		closed := h.encode(outbound{Type: TypeRoomClosed})
		h.rooms.Delete(room.Name())
		for _, member := range room.Members() {
			mc, ok := h.conns[member]
			if !ok {
				continue
			}
			mc.room = ""
			h.sendTo(member, closed)
		}
		h.metrics.Rooms.Set(float64(h.rooms.Len()))
		h.logger.Info("房主离开，房间已关闭", "room", room.Name(), "peer_id", id)
		return
	}
	h.rooms.Leave(room.Name(), id)
	h.sendTo(room.Host(), h.encode(outbound{Type: TypePlayerLeft, PeerID: id}))
	h.logger.Info("玩家离开房间", "room", room.Name(), "peer_id", id)
}

// sendTo 向连接入队一条消息，失败的连接在本轮事件结束后清理
func (h *Hub) sendTo(id string, data []byte) bool {
	c, ok := h.conns[id]
	if !ok {
		return false
	}
	if err := c.peer.Send(data); err != nil {
		h.logger.Warn("发送失败，断开连接", "peer_id", id, "error", err)
		h.doom(id)
		return false
	}
	return true
}

func (h *Hub) doom(id string) {
	h.doomed = append(h.doomed, id)
}

// reap 断开并清理本轮被标记的连接
func (h *Hub) reap() {
	for len(h.doomed) > 0 {
		id := h.doomed[0]
		h.doomed = h.doomed[1:]
		if c, ok := h.conns[id]; ok {
			c.peer.Terminate()
			h.cleanup(id)
		}
	}
}

func (h *Hub) encode(m outbound) []byte {
	m.AppType = h.limits.AppType
	return marshal(m)
}

func (h *Hub) reply(c *conn, m outbound) {
	h.sendTo(c.peer.ID(), h.encode(m))
}
