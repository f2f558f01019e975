// Package http provides HTTP server infrastructure including the Module interface
// that domain modules implement for route registration.
package http

import (
	"github.com/gin-gonic/gin"
)

// Module is a bounded context that mounts its own routes.
type Module interface {
	// Name identifies the module in startup logs.
	Name() string
	// RegisterRoutes mounts the module's routes on the shared groups.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext carries the pre-configured route groups.
// Protected and Admin already run rate limiting and JWT auth; Admin also
// requires the admin role.
type RouterContext struct {
	// V1 is the unauthenticated /api/v1 group.
	V1 *gin.RouterGroup
	// Protected is the authenticated group under /api/v1.
	Protected *gin.RouterGroup
	// Admin is mounted at /api/v1/admin.
	Admin *gin.RouterGroup
}
