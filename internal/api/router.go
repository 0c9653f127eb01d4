package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirieshkistudios/park-backend/internal/api/handler"
	"github.com/kirieshkistudios/park-backend/internal/api/middleware"
	"github.com/kirieshkistudios/park-backend/internal/service"
)

// Pinger reports database reachability for /healthz.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type RouterDeps struct {
	AuthService    *service.AuthService
	ParkingService *service.ParkingService
	Intake         handler.IntakeCoordinator
	Images         handler.ImageOpener
	WSManager      *handler.WebSocketManager
	AuthMiddleware *middleware.AuthMiddleware
	UploadLimiter  *middleware.RateLimiter
	MaxUploadBytes int64
	DB             Pinger
}

func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	if deps.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = deps.MaxUploadBytes
	}

	r.GET("/healthz", func(c *gin.Context) {
		if deps.DB != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.DB.PingContext(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.WSManager != nil {
		wsHandler := handler.NewWebSocketHandler(deps.WSManager)
		r.GET("/ws", wsHandler.HandleWebSocket)
	}

	// Camera and inference-service facing routes authenticate with
	// their own credentials, not user JWTs.
	intakeH := handler.NewIntakeHandler(deps.Intake, deps.MaxUploadBytes)
	uploads := r.Group("")
	if deps.UploadLimiter != nil {
		uploads.Use(deps.UploadLimiter.Middleware(middleware.UploadKey))
	}
	{
		uploads.POST("/upload", intakeH.Upload)
		uploads.POST("/secure-upload", intakeH.SecureUpload)
	}
	r.POST("/upload-result", intakeH.ReceiveReport)
	r.POST("/api/v1/reports", intakeH.ReceiveReport)

	imageH := handler.NewImageHandler(deps.Images)
	r.GET("/images/:name", imageH.GetImage)

	authHandler := handler.NewAuthHandler(deps.AuthService)
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	// Lot occupancy is public. Camera listings stay behind auth because
	// cameras serialize their credential.
	lotH := handler.NewParkingLotHandler(deps.ParkingService)
	publicLots := r.Group("/api/v1/parking-lots")
	{
		publicLots.GET("", lotH.GetAllParkingLots)
		publicLots.GET("/:id", lotH.GetParkingLotByID)
	}

	authMw := deps.AuthMiddleware
	v1 := r.Group("/api/v1")
	v1.Use(authMw.Authenticate())
	{
		v1.GET("/me", authHandler.Me)

		lotRoutes := v1.Group("/parking-lots")
		{
			lotRoutes.POST("", lotH.CreateParkingLot)
			lotRoutes.GET("/:id/cameras", lotH.GetCamerasByLotID)
			lotRoutes.PUT("/:id", lotH.UpdateParkingLot)
			lotRoutes.DELETE("/:id", lotH.DeleteParkingLot)
		}

		camH := handler.NewCameraHandler(deps.ParkingService)
		camRoutes := v1.Group("/cameras")
		{
			camRoutes.POST("", camH.CreateCamera)
			camRoutes.GET("", camH.GetAllCameras)
			camRoutes.GET("/:id", camH.GetCameraByID)
			camRoutes.PUT("/:id", camH.UpdateCamera)
			camRoutes.DELETE("/:id", camH.DeleteCamera)
		}

		userH := handler.NewUserHandler(deps.AuthService)
		userRoutes := v1.Group("/users")
		userRoutes.Use(authMw.AuthorizeSuperior())
		{
			userRoutes.GET("", userH.GetAllUsers)
			userRoutes.GET("/:id", userH.GetUserByID)
			userRoutes.PUT("/:id", userH.UpdateUser)
			userRoutes.DELETE("/:id", userH.DeleteUser)
		}
	}
	return r
}
