package commerce

import (
	"context"
	"fmt"

	"github.com/RoyceAzure/lab/storefront/internal/repository"
	"github.com/RoyceAzure/lab/storefront/pkg/kvstore"
)

/*
Watch 訂閱其他 handle (分頁/程序) 的寫入
目前使用者的 cart_ / wishlist_ 被別人改寫時重新載入，後寫入者為準
自己寫入的事件依 Origin 忽略
阻塞直到 ctx 結束，ctx 結束時回傳 nil
*/
func (s *Store) Watch(ctx context.Context) error {
	events, err := s.repo.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch storage changes: %w", err)
	}
	origin := s.repo.Origin()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if evt.Origin == origin {
				continue
			}
			s.applyRemoteChange(ctx, evt)
		}
	}
}

func (s *Store) applyRemoteChange(ctx context.Context, evt kvstore.ChangeEvent) {
	kind, email := repository.ParseKey(evt.Key)
	if kind != repository.KindCart && kind != repository.KindWishlist {
		return
	}

	s.mu.Lock()
	if s.email == "" || s.email != email {
		s.mu.Unlock()
		return
	}
	switch kind {
	case repository.KindCart:
		cart, err := s.repo.LoadCart(ctx, email)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", evt.Key).Msg("reload cart failed")
			s.mu.Unlock()
			return
		}
		s.cart = cart
	case repository.KindWishlist:
		wishlist, err := s.repo.LoadWishlist(ctx, email)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", evt.Key).Msg("reload wishlist failed")
			s.mu.Unlock()
			return
		}
		s.wishlist = wishlist
	}
	s.mu.Unlock()

	s.logger.Debug().Str("key", evt.Key).Str("origin", evt.Origin).Msg("reloaded after remote change")
	s.notify(Change{Kind: ChangeReloaded, Email: email})
}
