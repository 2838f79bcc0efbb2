package api

import (
	"database/sql"
	"net/http"

	"github.com/HarshS99/lostandfound/internal/model"
	"github.com/HarshS99/lostandfound/internal/pipeline"
)

// NewRouter creates the API router with all endpoints registered. Report
// submission is public; browsing stored reports (which exposes contact
// details) requires a staff login.
func NewRouter(db *sql.DB, jwtSecret string, coordinator *pipeline.Coordinator) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	itemsHandler := &ItemsHandler{DB: db}
	reportsHandler := &ReportsHandler{Pipeline: coordinator}

	authMW := AuthMiddleware(jwtSecret)
	requireStaff := RequireRole(model.RoleStaff)

	// Public: login and report submission.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/reports", reportsHandler.Create)

	// Staff: browsing reported items.
	mux.Handle("GET /api/items", authMW(requireStaff(http.HandlerFunc(itemsHandler.List))))
	mux.Handle("GET /api/items/{id}", authMW(requireStaff(http.HandlerFunc(itemsHandler.Get))))
	mux.Handle("GET /api/items/{id}/image", authMW(requireStaff(http.HandlerFunc(itemsHandler.GetImage))))

	return mux
}
