package handlers

import (
	"github.com/go-chi/chi/v5"
)

// Mount registers the /api routes on r.
func Mount(r chi.Router, d GamesDeps) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", Status())
		r.Get("/user", User(d.Steam, d.Log))
		r.Get("/friends", Friends(d.Steam, d.Log))
		r.Get("/games", Games(d))
		r.Get("/games/{appid}", GameByID(d))
	})
}
