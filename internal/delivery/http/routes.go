package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	wsDelivery "telechat/internal/delivery/websocket"
)

func MapHttpRoutes(r *chi.Mux, httpHandler *HttpHandler, websocketHandler *wsDelivery.WebsocketHandler, authHandler *AuthHandler, authMiddleware *AuthMiddleware) {
	r.Handle("/ws", http.HandlerFunc(websocketHandler.HandleWebSocket))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", http.HandlerFunc(authHandler.Register))
		r.Post("/login", http.HandlerFunc(authHandler.Login))
		r.Post("/refresh", http.HandlerFunc(authHandler.Refresh))

		// logout needs the gate: it revokes whatever token passed it
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/logout", http.HandlerFunc(authHandler.Logout))
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Route("/chats", func(r chi.Router) {
			r.Get("/", http.HandlerFunc(httpHandler.ListChats))
			r.Get("/{peerId}/messages", http.HandlerFunc(httpHandler.GetMessages))
			r.Post("/{peerId}/read", http.HandlerFunc(httpHandler.MarkRead))
		})

		r.Post("/messages", http.HandlerFunc(httpHandler.SendMessage))
		r.Get("/unread/total", http.HandlerFunc(httpHandler.UnreadTotal))
		r.Get("/users/{id}", http.HandlerFunc(httpHandler.GetUser))
		r.Post("/presence/heartbeat", http.HandlerFunc(httpHandler.Heartbeat))
	})
}
