// Package httpapi is the thin HTTP surface over the orchestrator package,
// grounded on the teacher's internal/server package: gin.Engine routes,
// gin-contrib/slog request logging, and a CORS middleware carried over
// verbatim in spirit, retargeted from the teacher's flow/step/health
// resources to transactions/steps here.
package httpapi

import (
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/kode4food/txsaga/internal/eventbus"
	"github.com/kode4food/txsaga/internal/orchestrator"
	"github.com/kode4food/txsaga/pkg/util"
)

// Server implements the HTTP API over a Runner's registered models.
type Server struct {
	runner *orchestrator.Runner
	bus    *eventbus.Bus
	log    *slog.Logger

	mu      sync.Mutex
	sockets util.Set[*Client]
}

// NewServer constructs a Server dispatching to runner's registered
// Orchestrators and streaming bus events over WebSocket.
func NewServer(runner *orchestrator.Runner, bus *eventbus.Bus, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		runner:  runner,
		bus:     bus,
		log:     log,
		sockets: util.Set[*Client]{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API
// endpoints.
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(_ *gin.Context, _ *slog.Logger) *slog.Logger {
			return s.log
		}),
	))
	router.Use(corsMiddleware)

	router.GET("/health", s.handleHealth)

	models := router.Group("/models/:model")
	{
		models.POST("/transactions", s.beginTransaction)
		models.GET("/transactions/:id", s.getTransaction)
		models.POST("/transactions/:id/resume", s.resumeTransaction)
		models.POST("/transactions/:id/cancel", s.cancelTransaction)
		models.POST("/steps/:key/success", s.registerStepSuccess)
		models.POST("/steps/:key/failure", s.registerStepFailure)
		models.GET("/events", s.handleWebSocket)
	}

	return router
}

func corsMiddleware(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusOK)
		return
	}
	c.Next()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) registerSocket(cl *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(cl)
}

func (s *Server) unregisterSocket(cl *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(cl)
}

// CloseWebSockets closes every active WebSocket connection, used on
// graceful shutdown.
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, s.sockets.Len())
	for cl := range s.sockets {
		conns = append(conns, cl)
	}
	s.mu.Unlock()

	for _, cl := range conns {
		cl.Close()
	}
}

func jsonError(c *gin.Context, status int, err error) {
	c.JSON(status, ErrorResponse{Error: err.Error(), Status: status})
}
