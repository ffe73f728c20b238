// Package main runs the project collaboration HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/taskboard/backend/config"
	"github.com/taskboard/backend/internal/access"
	"github.com/taskboard/backend/internal/auth"
	"github.com/taskboard/backend/internal/comments"
	"github.com/taskboard/backend/internal/invites"
	"github.com/taskboard/backend/internal/middleware"
	"github.com/taskboard/backend/internal/projects"
	"github.com/taskboard/backend/internal/realtime"
	"github.com/taskboard/backend/internal/tasks"
	"github.com/taskboard/backend/pkg/database"
	"github.com/taskboard/backend/pkg/redis"
	"github.com/taskboard/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}

	var hub *realtime.Hub
	if rdb != nil {
		defer rdb.Close()
		redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, redisPubSub, redisPubSub)
	} else {
		hub = realtime.NewHub(logger, nil, nil)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Projects and membership; the repository is also the guard's role source
	projectRepo := projects.NewRepository(pool)
	guard := access.NewGuard(projectRepo, access.DefaultPolicy(), logger)
	projectService := projects.NewService(projectRepo, hub, logger)
	projectHandler := projects.NewHandler(projectService, logger)

	// Invites
	inviteTokens := invites.NewTokens(cfg.Invite.Secret, cfg.Invite.TTL(), nil)
	inviteService := invites.NewService(inviteTokens, projectRepo, hub, cfg.Invite.BaseURL, logger)
	inviteHandler := invites.NewHandler(inviteService, logger)

	// Tasks and comments
	taskService := tasks.NewService(tasks.NewRepository(pool), hub, logger)
	taskHandler := tasks.NewHandler(taskService, logger)
	commentHandler := comments.NewHandler(comments.NewRepository(pool), hub, logger)

	validateSession := func(token string) (uuid.UUID, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, err
		}
		return claims.UserID, nil
	}
	guarded := func(op access.Operation) gin.HandlerFunc {
		return middleware.RequireProject(guard, op, logger)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me(middleware.ContextUserID))

		api.GET("/projects", projectHandler.ListMine)
		api.POST("/projects", projectHandler.Create)
		api.POST("/invites/accept", inviteHandler.Accept)

		project := api.Group("/projects/:id")
		{
			project.GET("", guarded(access.OpProjectRead), projectHandler.Get)
			project.PATCH("", guarded(access.OpProjectUpdate), projectHandler.Update)
			project.DELETE("", guarded(access.OpProjectDelete), projectHandler.Delete)

			// Membership
			project.GET("/members", guarded(access.OpMemberList), projectHandler.ListMembers)
			project.POST("/members/:userId", guarded(access.OpMemberAdd), projectHandler.AddMember)
			project.DELETE("/members/:userId", guarded(access.OpMemberRemove), projectHandler.RemoveMember)
			project.PATCH("/roles/:userId", guarded(access.OpRoleUpdate), projectHandler.UpdateRole)
			project.POST("/invite-link", guarded(access.OpInviteIssue), inviteHandler.Issue)

			// Tasks
			project.GET("/tasks", guarded(access.OpTaskRead), taskHandler.List)
			project.POST("/tasks", guarded(access.OpTaskWrite), taskHandler.Create)
			project.GET("/tasks/:taskId", guarded(access.OpTaskRead), taskHandler.Get)
			project.PATCH("/tasks/:taskId", guarded(access.OpTaskWrite), taskHandler.Update)
			project.DELETE("/tasks/:taskId", guarded(access.OpTaskWrite), taskHandler.Delete)
			project.PATCH("/task-order", guarded(access.OpTaskReorder), taskHandler.Reorder)

			// Comments
			project.GET("/tasks/:taskId/comments", guarded(access.OpCommentRead), commentHandler.List)
			project.POST("/tasks/:taskId/comments", guarded(access.OpCommentWrite), commentHandler.Create)
			project.GET("/comments/:commentId", guarded(access.OpCommentRead), commentHandler.Get)
			project.PATCH("/comments/:commentId", guarded(access.OpCommentWrite), commentHandler.Update)
			project.DELETE("/comments/:commentId", guarded(access.OpCommentWrite), commentHandler.Delete)
		}
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, guard, validateSession, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
