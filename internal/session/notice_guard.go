package session

import "sync"

const defaultGuardSize = 256

// NoticeGuard 每個導覽 id 只允許提示一次
// 只記住最近 size 筆導覽 id，舊的依序淘汰
type NoticeGuard struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
	size  int
}

func NewNoticeGuard(size int) *NoticeGuard {
	if size <= 0 {
		size = defaultGuardSize
	}
	return &NoticeGuard{
		seen:  make(map[string]struct{}, size),
		order: make([]string, 0, size),
		size:  size,
	}
}

// Fire 第一次看到 navigationID 回傳 true
// 空的 navigationID 視為每次都是新的導覽
func (g *NoticeGuard) Fire(navigationID string) bool {
	if navigationID == "" {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[navigationID]; ok {
		return false
	}
	if len(g.order) >= g.size {
		oldest := g.order[0]
		g.order = g.order[1:]
		delete(g.seen, oldest)
	}
	g.seen[navigationID] = struct{}{}
	g.order = append(g.order, navigationID)
	return true
}
