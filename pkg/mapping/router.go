package mapping

import (
	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the order listing API.
func Router(store *Store) chi.Router {
	r := chi.NewRouter()
	r.Get("/", ListOrdersHandler(store))
	r.Get("/lookup", LookupHandler(store))
	return r
}
