package storeconfig

import (
	"net/http"

	"github.com/phoenix-bikes/biketrack/internal/platform/httpx"
)

// Handler serves the public half of cfg to browser clients.
func Handler(cfg StoreConfig) http.Handler {
	public := cfg.Public()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Content-Type", "application/json")

		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			httpx.JSON(w, http.StatusOK, public)
		default:
			h.Set("Allow", "GET, OPTIONS")
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}
