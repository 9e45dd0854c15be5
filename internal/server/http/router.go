package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lootlocal/voucherd/internal/limiter"
)

// Limiters carries the per-tier rate limiters. Roll/reroll/claim share the
// standard tier; the places proxy gets its own tighter tiers because each
// request costs upstream quota.
type Limiters struct {
	Standard     limiter.Limiter
	Autocomplete limiter.Limiter
	Details      limiter.Limiter
}

// NewRouter wires all routes. The places handler may be nil when no API key
// is configured; its routes are then not registered.
func NewRouter(vh *VoucherHandler, ph *PlacesHandler, lims Limiters, log *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(Recover(log))
	r.Use(Logging(log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/state", vh.HandleState)
		r.Get("/stores", vh.HandleStores)
		r.Get("/categories", vh.HandleCategories)
		r.Post("/redeem/{token}", vh.HandleRedeem)

		r.Group(func(r chi.Router) {
			r.Use(RateLimit(lims.Standard, log))
			r.Post("/roll", vh.HandleRoll)
			r.Post("/reroll", vh.HandleReroll)
			r.Post("/claim", vh.HandleClaim)
		})

		if ph != nil {
			r.Group(func(r chi.Router) {
				r.Use(RateLimit(lims.Autocomplete, log))
				r.Post("/places/autocomplete", ph.HandleAutocomplete)
			})
			r.Group(func(r chi.Router) {
				r.Use(RateLimit(lims.Details, log))
				r.Post("/places/details", ph.HandleDetails)
			})
		}
	})

	return r
}
