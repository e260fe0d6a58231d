package kvstore

import (
	"context"
	"sync"
)

const subscriberBuffer = 64

// Broadcaster 程序內的變更通知扇出
// 訂閱端處理太慢時事件會被丟棄，訂閱端應以重新讀取儲存為準
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan ChangeEvent]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan ChangeEvent]struct{})}
}

func (b *Broadcaster) Subscribe(ctx context.Context) <-chan ChangeEvent {
	ch := make(chan ChangeEvent, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}()

	return ch
}

func (b *Broadcaster) Publish(evt ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Close 關閉所有訂閱 channel
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
