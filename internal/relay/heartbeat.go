package relay

// sweep 心跳巡检
//
// 上一轮探测后仍未应答的连接直接断开；其余连接标记为未应答并发送 ping。
// 死连接最迟在两个周期内被发现。
func (h *Hub) sweep() {
	for id, c := range h.conns {
		if !c.alive {
			h.metrics.Terminations.Inc()
			h.logger.Info("心跳超时，断开连接", "peer_id", id)
			h.doom(id)
			continue
		}
		c.alive = false
		if err := c.peer.Ping(); err != nil {
			h.logger.Warn("发送 ping 失败", "peer_id", id, "error", err)
			h.doom(id)
		}
	}
}
