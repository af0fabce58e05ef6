package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/accounts"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/fulfillment"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/ident"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/model"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/shipping"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/store"
	"github.com/Halomaster0/ColdBloodedHeartbeats/internal/storefront"
)

// Limiter counts attempts per key within a window. *rediscache.RedisCache
// satisfies it.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}

// Deps are the collaborators the API serves. Limiter and Publisher may be nil.
type Deps struct {
	Accounts      *accounts.Store
	JWTSecret     string
	Inventory     *store.Inventory
	Subscriptions *store.Subscriptions
	Leads         *store.Leads
	Fulfillment   *fulfillment.Coordinator
	Weather       shipping.Provider
	ItemIDs       ident.Generator

	Limiter         Limiter
	LoginsPerMinute int64

	Publisher storefront.Publisher
	Layout    storefront.Layout

	Now func() time.Time
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	if d.Now == nil {
		d.Now = time.Now
	}

	mux := http.NewServeMux()

	var mu sync.Mutex
	core := Serialize(&mu)

	authHandler := &AuthHandler{Accounts: d.Accounts, JWTSecret: d.JWTSecret, Limiter: d.Limiter, LoginsPerMinute: d.LoginsPerMinute}
	usersHandler := &UsersHandler{Accounts: d.Accounts}
	itemsHandler := &ItemsHandler{Inventory: d.Inventory, IDs: d.ItemIDs, Fulfillment: d.Fulfillment, Publisher: d.Publisher, Layout: d.Layout}
	subsHandler := &SubscriptionsHandler{Subscriptions: d.Subscriptions, Now: d.Now}
	shippingHandler := &ShippingHandler{Weather: d.Weather}
	leadsHandler := &LeadsHandler{Leads: d.Leads}
	catalogHandler := &CatalogHandler{Inventory: d.Inventory, Publisher: d.Publisher, Layout: d.Layout}

	authMW := AuthMiddleware(d.JWTSecret, d.Accounts)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireStaff := RequireRole(model.RoleStaff)

	// wrap applies authentication, an optional role check and core serialization.
	wrap := func(h http.HandlerFunc, role func(http.Handler) http.Handler) http.Handler {
		var inner http.Handler = core(h)
		if role != nil {
			inner = role(inner)
		}
		return authMW(inner)
	}

	// Public.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.Handle("GET /api/catalog", core(http.HandlerFunc(catalogHandler.Catalog)))
	mux.Handle("POST /api/leads", core(http.HandlerFunc(leadsHandler.Create)))

	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Items: read (all roles), write (staff+), reinstate (admin).
	mux.Handle("GET /api/items", wrap(itemsHandler.List, nil))
	mux.Handle("POST /api/items", wrap(itemsHandler.Create, requireStaff))
	mux.Handle("GET /api/items/{id}", wrap(itemsHandler.Get, nil))
	mux.Handle("PUT /api/items/{id}", wrap(itemsHandler.Update, requireStaff))
	mux.Handle("DELETE /api/items/{id}", wrap(itemsHandler.Delete, requireStaff))
	mux.Handle("POST /api/items/{id}/sell", wrap(itemsHandler.Sell, requireStaff))
	mux.Handle("POST /api/items/{id}/ship", wrap(itemsHandler.Ship, requireStaff))
	mux.Handle("POST /api/items/{id}/reinstate", wrap(itemsHandler.Reinstate, requireAdmin))
	mux.Handle("POST /api/items/{id}/feedings", wrap(itemsHandler.AddFeeding, requireStaff))
	mux.Handle("PUT /api/items/{id}/image", wrap(itemsHandler.UploadImage, requireStaff))

	// Subscriptions.
	mux.Handle("GET /api/subscriptions", wrap(subsHandler.List, nil))
	mux.Handle("GET /api/subscriptions/due", wrap(subsHandler.Due, nil))
	mux.Handle("POST /api/subscriptions", wrap(subsHandler.Create, requireStaff))
	mux.Handle("GET /api/subscriptions/{id}", wrap(subsHandler.Get, nil))
	mux.Handle("POST /api/subscriptions/{id}/advance", wrap(subsHandler.Advance, requireStaff))
	mux.Handle("PUT /api/subscriptions/{id}/status", wrap(subsHandler.SetStatus, requireStaff))

	// Shipping gate lookups touch no store.
	mux.Handle("GET /api/shipping/check", authMW(http.HandlerFunc(shippingHandler.Check)))

	mux.Handle("GET /api/leads", wrap(leadsHandler.List, requireStaff))

	mux.Handle("POST /api/publish", wrap(catalogHandler.Publish, requireAdmin))

	return mux
}
