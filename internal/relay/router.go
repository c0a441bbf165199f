package relay

// signal 转发不透明负载
//
// 带 targetId 时只发给房间内 ID 相同的成员，找不到则什么也不做；
// 否则发给除发送者以外的所有成员。转发的始终是收到的原始字节。
func (h *Hub) signal(c *conn, m SignalMessage) {
	if c.room == "" {
		return
	}
	room, ok := h.rooms.Get(c.room)
	if !ok || !room.Has(c.peer.ID()) {
		return
	}
	if m.HasTarget {
		if m.TargetID == "" || !room.Has(m.TargetID) {
			return
		}
		if h.sendTo(m.TargetID, m.Raw) {
			h.metrics.Relayed.WithLabelValues("unicast").Inc()
		}
		return
	}
	sender := c.peer.ID()
	for _, member := range room.Members() {
		if member == sender {
			continue
		}
		h.sendTo(member, m.Raw)
	}
	h.metrics.Relayed.WithLabelValues("broadcast").Inc()
}
