package relay

import "errors"

// 返回给客户端的错误文案
const (
	msgRoomFull      = "Sala llena"
	msgWrongPassword = "Contraseña incorrecta"
	msgUnavailable   = "Sala no disponible"
	msgCreateFailed  = "No se pudo crear la sala"
)

var ErrWrongPassword = errors.New("wrong_password")

// join 处理创建或加入房间
//
// 新名称走房主路径，已存在的名称走成员路径。带密码时哈希与比对在
// Hub 协程之外完成，结果通过 commit 回到 Hub 协程后再校验一次现场。
func (h *Hub) join(c *conn, m JoinMessage) {
	if m.Room == "" {
		return
	}
	if c.pending || c.room != "" {
		h.logger.Debug("忽略重复的 join", "peer_id", c.peer.ID(), "room", m.Room)
		return
	}
	c.alias = m.Alias

	room, exists := h.rooms.Get(m.Room)
	switch {
	case exists:
		h.joinExisting(c, room, m)
	case h.rooms.Reserved(m.Room):
		h.reply(c, outbound{Type: TypeError, Message: msgUnavailable})
	default:
		h.createRoom(c, m)
	}
}

// createRoom 房主路径：先预留名称，再哈希，最后提交或回滚
func (h *Hub) createRoom(c *conn, m JoinMessage) {
	id := c.peer.ID()
	if m.Password == "" {
		h.commitRoom(id, m.Room, "", nil)
		return
	}
	if err := h.rooms.Reserve(m.Room, id); err != nil {
		h.reply(c, outbound{Type: TypeError, Message: msgUnavailable})
		return
	}
	c.pending = true
	name, password := m.Room, m.Password
	h.async(func() commit {
		digest, err := h.hasher.Hash(password)
		return func() { h.commitRoom(id, name, digest, err) }
	})
}

func (h *Hub) commitRoom(id, name, digest string, hashErr error) {
	c, alive := h.conns[id]
	if !alive {
		// 哈希期间连接已断开
		h.rooms.Release(name, id)
		h.logger.Debug("房主在创建完成前断开，释放房间名", "room", name, "peer_id", id)
		return
	}
	c.pending = false
	if hashErr != nil {
		h.rooms.Release(name, id)
		h.logger.Error("密码哈希失败", "room", name, "peer_id", id, "error", hashErr)
		h.reply(c, outbound{Type: TypeError, Message: msgCreateFailed})
		return
	}
	token, err := h.newToken()
	if err != nil {
		h.rooms.Release(name, id)
		h.logger.Error("生成会话令牌失败", "room", name, "peer_id", id, "error", err)
		h.reply(c, outbound{Type: TypeError, Message: msgCreateFailed})
		return
	}
	if _, err := h.rooms.Create(name, id, digest, token, h.now()); err != nil {
		h.rooms.Release(name, id)
		h.reply(c, outbound{Type: TypeError, Message: msgUnavailable})
		return
	}
	c.room = name
	c.host = true
	h.metrics.Rooms.Set(float64(h.rooms.Len()))
	h.logger.Info("房间已创建", "room", name, "peer_id", id, "has_password", digest != "")
	h.reply(c, outbound{Type: TypeRoomCreated, Room: name, PeerID: id})
}

// joinExisting 成员路径：容量检查、密码校验、加入并通知房主
//
// 携带 token 时跳过密码校验，token 的值不做验证。
func (h *Hub) joinExisting(c *conn, room *Room, m JoinMessage) {
	if h.rooms.Full(room) {
		h.reply(c, outbound{Type: TypeError, Message: msgRoomFull})
		return
	}
	if !room.HasPassword() || m.Token {
		h.admitMember(c.peer.ID(), room, nil)
		return
	}
	if m.Password == "" {
		h.reply(c, outbound{Type: TypeError, Message: msgWrongPassword})
		return
	}
	id := c.peer.ID()
	c.pending = true
	password, digest := m.Password, room.PasswordHash()
	h.async(func() commit {
		var err error
		if !h.hasher.Compare(password, digest) {
			err = ErrWrongPassword
		}
		return func() { h.admitMember(id, room, err) }
	})
}

func (h *Hub) admitMember(id string, room *Room, authErr error) {
	c, alive := h.conns[id]
	if !alive {
		return
	}
	c.pending = false
	if authErr != nil {
		h.logger.Info("房间密码错误", "room", room.Name(), "peer_id", id)
		h.reply(c, outbound{Type: TypeError, Message: msgWrongPassword})
		return
	}
	switch err := h.rooms.Join(room, id); {
	case errors.Is(err, ErrRoomFull):
		h.reply(c, outbound{Type: TypeError, Message: msgRoomFull})
		return
	case err != nil:
		// 校验期间房间已关闭
		h.reply(c, outbound{Type: TypeError, Message: msgUnavailable})
		return
	}
	c.room = room.Name()
	h.logger.Info("玩家加入房间", "room", room.Name(), "peer_id", id, "alias", c.alias)
	h.reply(c, outbound{Type: TypeJoined, Room: room.Name(), PeerID: id})
	h.sendTo(room.Host(), h.encode(outbound{Type: TypePlayerJoin, PeerID: id, Alias: c.alias}))
}
