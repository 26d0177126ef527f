package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/portfolio/internal/httpapi"
	"github.com/MarkoPoloResearchLab/portfolio/internal/storage"
)

const (
	publicRouteContact      = "/api/contact"
	publicRouteContacts     = "/api/contacts"
	publicRouteHealth       = "/healthz"
	corsOriginWildcard      = "*"
	corsHeaderContentType   = "Content-Type"
	corsHeaderRequestID     = httpapi.HeaderRequestID
	corsPreflightMaxAgeHour = 12
)

var (
	corsAllowedMethods = []string{http.MethodPost, http.MethodGet, http.MethodOptions}
	corsAllowedHeaders = []string{corsHeaderContentType, corsHeaderRequestID}
	corsExposedHeaders = []string{corsHeaderContentType, corsHeaderRequestID}
)

func newRouter(contactStore storage.ContactStore, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestID())
	router.Use(httpapi.RequestLogger(logger))

	registerContactRoutes(router, contactStore, logger)
	return router
}

func registerContactRoutes(router *gin.Engine, contactStore storage.ContactStore, logger *zap.Logger) {
	publicCORS := cors.New(cors.Config{
		AllowOrigins:     []string{corsOriginWildcard},
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: false,
		MaxAge:           corsPreflightMaxAgeHour * time.Hour,
	})

	contactHandlers := httpapi.NewContactHandlers(contactStore, logger)
	healthHandlers := httpapi.NewHealthHandlers(contactStore, logger)

	publicGroup := router.Group("/")
	publicGroup.Use(publicCORS)
	publicGroup.POST(publicRouteContact, contactHandlers.CreateContact)
	publicGroup.GET(publicRouteContacts, contactHandlers.ListContacts)
	publicGroup.GET(publicRouteHealth, healthHandlers.Health)

	// Preflights only reach the group CORS middleware when a route matches.
	for _, publicRoute := range []string{publicRouteContact, publicRouteContacts, publicRouteHealth} {
		publicGroup.OPTIONS(publicRoute, respondPreflight)
	}
}

func respondPreflight(context *gin.Context) {
	context.Status(http.StatusNoContent)
}
