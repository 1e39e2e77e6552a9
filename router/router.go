package router

import (
	"loan-desk-api/handler"
	"loan-desk-api/model"
	"loan-desk-api/obs"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "loan-desk-api/docs"
)

func NewRouter(authHandler *handler.AuthHandler, dispatchHandler *handler.DispatchHandler, authMiddleware *handler.AuthMiddleware) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", handler.HealthCheck)
	mux.Handle("/metrics", obs.Handler())
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	if authHandler != nil {
		mux.Handle("/api/auth/login", handler.RateLimit(
			http.Handler(handler.ErrorHandlingMiddleware(authHandler.Login)), 5, 1))
		mux.Handle("/api/auth/refresh", handler.ErrorHandlingMiddleware(authHandler.Refresh))
		mux.Handle("/api/auth/logout", handler.ErrorHandlingMiddleware(authHandler.Logout))
	}

	if dispatchHandler != nil && authMiddleware != nil {
		dispatcher := handler.ErrorHandlingMiddleware(dispatchHandler.Execute)
		protected := authMiddleware.RequireAuth(
			authMiddleware.RequireRole(model.RoleLoanOfficer, model.RoleAnalyst)(dispatcher))
		mux.Handle("/api/functions", protected)
	}

	return obs.Instrument(mux)
}
