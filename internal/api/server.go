package api

import "github.com/RoyceAzure/lab/storefront/internal/api/handler"

type Server struct {
	SessionHandler  *handler.SessionHandler
	ProductHandler  *handler.ProductHandler
	CartHandler     *handler.CartHandler
	WishlistHandler *handler.WishlistHandler
	CheckoutHandler *handler.CheckoutHandler
	OrderHandler    *handler.OrderHandler
}

func NewServer(
	sessionHandler *handler.SessionHandler,
	productHandler *handler.ProductHandler,
	cartHandler *handler.CartHandler,
	wishlistHandler *handler.WishlistHandler,
	checkoutHandler *handler.CheckoutHandler,
	orderHandler *handler.OrderHandler,
) *Server {
	return &Server{
		SessionHandler:  sessionHandler,
		ProductHandler:  productHandler,
		CartHandler:     cartHandler,
		WishlistHandler: wishlistHandler,
		CheckoutHandler: checkoutHandler,
		OrderHandler:    orderHandler,
	}
}
