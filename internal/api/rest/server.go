package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/KevinKickass/OpenShutterCore/internal/api/websocket"
	"github.com/KevinKickass/OpenShutterCore/internal/auth"
	"github.com/KevinKickass/OpenShutterCore/internal/config"
	"github.com/KevinKickass/OpenShutterCore/internal/interfaces"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router      *gin.Engine
	lm          interfaces.LifecycleManager
	logger      *zap.Logger
	server      *http.Server
	wsHub       *websocket.Hub
	authService *auth.AuthService
}

func NewServer(cfg *config.Config, lm interfaces.LifecycleManager, logger *zap.Logger, wsHub *websocket.Hub, authService *auth.AuthService) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:      gin.Default(),
		lm:          lm,
		logger:      logger,
		wsHub:       wsHub,
		authService: authService,
	}

	s.setupRoutes()

	// Kein globales WriteTimeout: Kalibrierung blockiert für zwei volle
	// Fahrten und das Pairing bis zum Ablauf des Pairing-Fensters, beides
	// deutlich über jeder sinnvollen Deadline. Ein Write-Deadline würde die
	// Antwort dieser Endpunkte verwerfen, obwohl der Handler sie liefert.
	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	// Public routes (no auth required)
	s.router.GET("/health", s.healthCheck)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// ==================== AUTH ENDPOINTS (PUBLIC) ====================
		authPublic := v1.Group("/auth")
		{
			authPublic.POST("/login", s.login)
		}

		// ==================== AUTH ENDPOINTS (AUTHENTICATED) ====================
		authProtected := v1.Group("/auth")
		authProtected.Use(s.authService.AuthMiddleware())
		{
			authProtected.GET("/me", s.getCurrentUser)
			authProtected.POST("/password", s.changePassword)
		}

		// ==================== USER MANAGEMENT (ADMIN ONLY) ====================
		users := v1.Group("/users")
		users.Use(s.authService.AuthMiddleware())
		users.Use(auth.RequirePermission(auth.PermAdmin))
		{
			users.POST("", s.createUser)
		}

		// ==================== SYSTEM ====================
		system := v1.Group("/system")
		system.Use(s.authService.AuthMiddleware())
		{
			system.GET("/status", auth.RequirePermission(auth.PermOperator), s.getSystemStatus)
		}

		// ==================== STICK (RADIO DONGLE) ====================
		stick := v1.Group("/stick")
		stick.Use(s.authService.AuthMiddleware())
		{
			// Read: Operator+
			stick.GET("/status", auth.RequirePermission(auth.PermOperator), s.getStickStatus)

			// Session and hardware control: Installer+
			stick.POST("/connect", auth.RequirePermission(auth.PermInstaller), s.connectStick)
			stick.POST("/disconnect", auth.RequirePermission(auth.PermInstaller), s.disconnectStick)
			stick.POST("/led", auth.RequirePermission(auth.PermInstaller), s.controlLED)
			stick.POST("/echo", auth.RequirePermission(auth.PermInstaller), s.setEcho)
			stick.POST("/reboot", auth.RequirePermission(auth.PermInstaller), s.rebootStick)
			stick.POST("/mode", auth.RequirePermission(auth.PermInstaller), s.setStickMode)
		}

		// ==================== DEVICES (PAIRED ACTUATORS) ====================
		devices := v1.Group("/devices")
		devices.Use(s.authService.AuthMiddleware())
		{
			// Read operations: Operator+
			devices.GET("", auth.RequirePermission(auth.PermOperator), s.listDevices)
			devices.GET("/:id", auth.RequirePermission(auth.PermOperator), s.getDevice)

			// Pairing and administration: Installer+
			devices.POST("/pair", auth.RequirePermission(auth.PermInstaller), s.pairDevice)
			devices.DELETE("/:id", auth.RequirePermission(auth.PermInstaller), s.deleteDevice)
			devices.PATCH("/:id", auth.RequirePermission(auth.PermInstaller), s.renameDevice)

			// Bulk import: Admin only
			devices.POST("/import", auth.RequirePermission(auth.PermAdmin), s.importDevices)
		}

		// ==================== MOTOR PROFILES (OPERATOR+) ====================
		profileRoutes := v1.Group("/profiles")
		profileRoutes.Use(s.authService.AuthMiddleware())
		profileRoutes.Use(auth.RequirePermission(auth.PermOperator))
		{
			profileRoutes.GET("/:name", s.getMotorProfile)
		}

		// ==================== COVERS (MOVEMENT) ====================
		covers := v1.Group("/covers")
		covers.Use(s.authService.AuthMiddleware())
		{
			// Drive operations: Operator+
			covers.POST("/:id/open", auth.RequirePermission(auth.PermOperator), s.openCover)
			covers.POST("/:id/close", auth.RequirePermission(auth.PermOperator), s.closeCover)
			covers.POST("/:id/stop", auth.RequirePermission(auth.PermOperator), s.stopCover)
			covers.POST("/:id/position", auth.RequirePermission(auth.PermOperator), s.setCoverPosition)

			// Installation work: Installer+
			covers.POST("/:id/calibrate", auth.RequirePermission(auth.PermInstaller), s.calibrateCover)
			covers.POST("/:id/endpoints/upper", auth.RequirePermission(auth.PermInstaller), s.setUpperEndpoint)
			covers.POST("/:id/endpoints/lower", auth.RequirePermission(auth.PermInstaller), s.setLowerEndpoint)
			covers.POST("/:id/manual", auth.RequirePermission(auth.PermInstaller), s.manualDrive)
			covers.POST("/:id/allow-pairing", auth.RequirePermission(auth.PermInstaller), s.allowPairingOnDevice)
		}

		// ==================== WEBSOCKET (PUBLIC - Auth via first message) ====================
		ws := v1.Group("/ws")
		{
			ws.GET("/live", s.wsLiveConnection)
			ws.GET("/status", s.authService.AuthMiddleware(),
				auth.RequirePermission(auth.PermOperator), s.wsStatus)
		}
	}
}

// WebSocket handlers
func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.GetCurrentStatus())
}
