package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nhle/taskboard/internal/api"
)

// route is one entry of the dispatch table.
type route struct {
	method  string
	path    string
	handler gin.HandlerFunc
}

// routeTable lists every API route in match order. Paths with an :id
// segment only match a decimal integer there.
func (s *Server) routeTable() []route {
	h := s.handlers
	return []route{
		{http.MethodGet, "/api/tasks", h.List},
		{http.MethodPost, "/api/tasks", h.Create},
		{http.MethodPut, "/api/tasks/:id", h.Update},
		{http.MethodDelete, "/api/tasks/:id", h.Delete},
		{http.MethodGet, "/api/tasks/:id", h.Show},
		{http.MethodGet, "/api/csrf-token", h.CSRFToken},
	}
}

func (s *Server) registerRoutes() {
	for _, rt := range s.routeTable() {
		chain := make([]gin.HandlerFunc, 0, 3)
		if strings.Contains(rt.path, "/:id") {
			chain = append(chain, requireID())
		}
		chain = append(chain, s.csrfMiddleware(), rt.handler)
		s.engine.Handle(rt.method, rt.path, chain...)
	}

	s.engine.GET("/health", s.handlers.Health)

	s.engine.NoRoute(routeNotFound)
	s.engine.NoMethod(routeNotFound)
}

func routeNotFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, api.Failure(api.ErrRouteNotFound))
}
