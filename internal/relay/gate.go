package relay

// Gate 按来源地址统计并发连接数
//
// 由 Hub 协程独占，不加锁。
type Gate struct {
	max    int
	counts map[string]int
}

func NewGate(max int) *Gate {
	return &Gate{max: max, counts: make(map[string]int)}
}

// Acquire 为 addr 占用一个名额，超过上限返回 false 且不改变计数
func (g *Gate) Acquire(addr string) bool {
	if g.counts[addr]+1 > g.max {
		return false
	}
	g.counts[addr]++
	return true
}

// Release 归还名额，计数归零时删除条目
func (g *Gate) Release(addr string) {
	n, ok := g.counts[addr]
	if !ok {
		return
	}
	if n <= 1 {
		delete(g.counts, addr)
		return
	}
	g.counts[addr] = n - 1
}

func (g *Gate) Count(addr string) int { return g.counts[addr] }
