package http

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brechodofuturo/marketplace/internal/auth"
	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	CORSAllowedOrigins []string
	UploadDir          string
	// StaticDir holds the built SPA; empty disables it.
	StaticDir string
}

type Deps struct {
	Users      UserService
	Products   ProductService
	Categories CategoryService
	Carts      CartService
	Orders     OrderService
	Reviews    ReviewService
	Shipping   ShippingService
	Carrier    CarrierAuthorizer
	Tokens     *auth.TokenService
	Uploader   *Uploader
	Health     []HealthCheck
	Log        *slog.Logger
}

func NewRouter(cfg RouterConfig, d Deps) http.Handler {
	users := NewUserHandler(d.Users, cfg.RequestTimeout)
	products := NewProductHandler(d.Products, d.Reviews, d.Uploader, cfg.RequestTimeout)
	categories := NewCategoryHandler(d.Categories, cfg.RequestTimeout)
	carts := NewCartHandler(d.Carts, cfg.RequestTimeout)
	orders := NewOrderHandler(d.Orders, cfg.RequestTimeout)
	reviews := NewReviewHandler(d.Reviews, cfg.RequestTimeout)
	ship := NewShippingHandler(d.Shipping, d.Carrier, cfg.RequestTimeout)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", healthHandler(d.Health))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
		r.Use(Authenticate(d.Tokens))

		r.Route("/users", func(r chi.Router) {
			r.Post("/register", users.Register)
			r.Post("/login", users.Login)

			r.Group(func(r chi.Router) {
				r.Use(RequireAuth)
				r.Get("/me", users.Me)
				r.With(RequireRole(domain.RoleAdmin)).Get("/", users.List)
				r.Get("/{id}", users.Get)
				r.Put("/{id}", users.Update)
				r.Delete("/{id}", users.Delete)
				r.Put("/{id}/password", users.ChangePassword)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", products.List)
			r.Get("/{id}", products.Get)
			r.Get("/{id}/reviews", products.ListReviews)

			r.Group(func(r chi.Router) {
				r.Use(RequireAuth)
				r.Post("/", products.Create)
				r.Put("/{id}", products.Update)
				r.Delete("/{id}", products.Delete)
				r.Post("/{id}/images", products.UploadImages)
				r.Post("/{id}/reviews", products.CreateReview)
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categories.List)
			r.Get("/{id}", categories.Get)

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(domain.RoleAdmin))
				r.Post("/", categories.Create)
				r.Put("/{id}", categories.Update)
				r.Delete("/{id}", categories.Delete)
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(RequireAuth)
			r.Get("/", carts.GetCart)
			r.Delete("/", carts.Clear)
			r.Post("/items", carts.AddItem)
			r.Put("/items/{productId}", carts.UpdateQuantity)
			r.Delete("/items/{productId}", carts.RemoveItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(RequireAuth)
			r.Post("/", orders.Checkout)
			r.Get("/", orders.List)
			r.Get("/{id}", orders.Get)
			r.With(RequireRole(domain.RoleAdmin)).Patch("/{id}/status", orders.UpdateStatus)
			r.Post("/{id}/cancel", orders.Cancel)
			r.Post("/{id}/pay", orders.Pay)
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Use(RequireAuth)
			r.Put("/{id}", reviews.Update)
			r.Delete("/{id}", reviews.Delete)
		})

		r.Route("/shipping", func(r chi.Router) {
			r.Post("/calculate", ship.Calculate)
			r.With(RequireRole(domain.RoleAdmin)).Get("/authorize", ship.Authorize)
			r.Get("/callback", ship.Callback)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, http.StatusNotFound, "not_found", "Rota não encontrada")
		})
	})

	uploads := http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir)))
	r.Get("/uploads/*", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		uploads.ServeHTTP(w, r)
	})

	if cfg.StaticDir != "" {
		r.NotFound(spaHandler(cfg.StaticDir))
	}

	return otelhttp.NewHandler(r, "marketplace-api")
}

func healthHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := map[string]string{}
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				report[c.Name] = err.Error()
				continue
			}
			report[c.Name] = "ok"
		}
		respondJSON(w, status, Envelope{Success: status == http.StatusOK, Data: report})
	}
}

// spaHandler serves files of the built frontend and falls back to
// index.html so client side routes survive a reload.
func spaHandler(dir string) http.HandlerFunc {
	files := http.FileServer(http.Dir(dir))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			respondError(w, http.StatusNotFound, "not_found", "Rota não encontrada")
			return
		}
		clean := filepath.Clean("/" + r.URL.Path)
		if info, err := os.Stat(filepath.Join(dir, clean)); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	}
}
