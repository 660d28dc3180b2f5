package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/learnlive/backend/config"
	"github.com/learnlive/backend/internal/analytics"
	"github.com/learnlive/backend/internal/attendance"
	"github.com/learnlive/backend/internal/auth"
	"github.com/learnlive/backend/internal/courses"
	"github.com/learnlive/backend/internal/mentors"
	"github.com/learnlive/backend/internal/middleware"
	"github.com/learnlive/backend/internal/models"
	"github.com/learnlive/backend/internal/quizzes"
	"github.com/learnlive/backend/internal/realtime"
	"github.com/learnlive/backend/internal/recommendations"
	"github.com/learnlive/backend/internal/recordings"
	"github.com/learnlive/backend/internal/sessions"
	"github.com/learnlive/backend/internal/streaming"
	"github.com/learnlive/backend/pkg/database"
	"github.com/learnlive/backend/pkg/ivs"
	"github.com/learnlive/backend/pkg/queue"
	"github.com/learnlive/backend/pkg/redis"
	"github.com/learnlive/backend/pkg/response"
	"github.com/learnlive/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("run migrations", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("connect redis", zap.Error(err))
	}
	defer rdb.Close()

	ivsClient, err := ivs.NewClient(ctx, ivs.Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
	}, logger)
	if err != nil {
		logger.Fatal("create ivs client", zap.Error(err))
	}

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		RecordingsBucket:     cfg.AWS.RecordingsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("create s3 client", zap.Error(err))
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Repositories.
	userRepo := auth.NewRepository(pool)
	sessionRepo := sessions.NewRepository(pool)
	streamRepo := streaming.NewRepository(pool)
	quizRepo := quizzes.NewRepository(pool)
	courseRepo := courses.NewRepository(pool)
	invitationRepo := mentors.NewRepository(pool)
	attendanceRepo := attendance.NewRepository(pool)
	analyticsRepo := analytics.NewRepository(pool)
	recordingRepo := recordings.NewRepository(pool)

	// Realtime hub with attendance logging, plus quiz answers over the socket.
	hub := realtime.NewHub(rdb, attendanceRepo, logger)
	quizService := quizzes.NewService(quizRepo, logger)
	hub.SetQuizSink(quizService)

	streamService := streaming.NewService(streamRepo, ivsClient, logger)
	monitors := streaming.NewMonitorRegistry(streamRepo, ivsClient, hub, logger)
	if err := monitors.Resume(ctx); err != nil {
		logger.Warn("resume stream monitors", zap.Error(err))
	}

	// Handlers.
	issuer := auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authHandler := auth.NewHandler(userRepo, issuer, logger)
	sessionHandler := sessions.NewHandler(sessionRepo, streamService, monitors, hub, logger)
	streamHandler := streaming.NewHandler(streamService, streamRepo, logger)
	quizHandler := quizzes.NewHandler(quizRepo, quizService, sessionRepo, hub, logger)
	courseHandler := courses.NewHandler(courseRepo, sessionRepo, logger)
	mentorHandler := mentors.NewHandler(invitationRepo, userRepo, logger)
	attendanceHandler := attendance.NewHandler(attendanceRepo, logger)
	analyticsHandler := analytics.NewHandler(analyticsRepo, logger)
	recommendationHandler := recommendations.NewHandler(
		cfg.Recommendation.EngineURL,
		time.Duration(cfg.Recommendation.TimeoutSec)*time.Second,
		logger,
	)
	recordingHandler := recordings.NewHandler(recordingRepo, jobQueue, s3Client, logger)

	router := newRouter(cfg, logger,
		authHandler, sessionHandler, streamHandler, quizHandler, courseHandler,
		mentorHandler, attendanceHandler, analyticsHandler, recommendationHandler,
		recordingHandler, hub)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	monitors.StopAll()
	streamHandler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

func newRouter(
	cfg *config.Config,
	logger *zap.Logger,
	authHandler *auth.Handler,
	sessionHandler *sessions.Handler,
	streamHandler *streaming.Handler,
	quizHandler *quizzes.Handler,
	courseHandler *courses.Handler,
	mentorHandler *mentors.Handler,
	attendanceHandler *attendance.Handler,
	analyticsHandler *analytics.Handler,
	recommendationHandler *recommendations.Handler,
	recordingHandler *recordings.Handler,
	hub *realtime.Hub,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok"})
	})

	authed := middleware.JWTAuth(cfg.JWT.Secret)
	mentorOnly := middleware.RequireRole(string(models.RoleMentor), string(models.RoleAdmin))
	adminOnly := middleware.RequireRole(string(models.RoleAdmin))

	api := router.Group("/api/v1")
	{
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
		api.GET("/auth/me", authed, authHandler.Me)
		api.PATCH("/auth/me", authed, authHandler.UpdateProfile)

		api.GET("/sessions/upcoming", sessionHandler.ListUpcoming)
		api.GET("/sessions/live", sessionHandler.ListLive)
		api.GET("/sessions/mine", authed, mentorOnly, sessionHandler.ListMine)
		api.GET("/sessions/:id", sessionHandler.Get)
		api.POST("/sessions", authed, mentorOnly, sessionHandler.Create)
		api.PATCH("/sessions/:id", authed, mentorOnly, sessionHandler.Update)
		api.POST("/sessions/:id/start", authed, mentorOnly, sessionHandler.Start)
		api.POST("/sessions/:id/end", authed, mentorOnly, sessionHandler.End)
		api.POST("/sessions/:id/cancel", authed, mentorOnly, sessionHandler.Cancel)

		api.GET("/sessions/:id/stream/status", streamHandler.StreamStatus)
		api.GET("/sessions/:id/quizzes", authed, quizHandler.ListBySession)
		api.GET("/sessions/:id/leaderboard", authed, quizHandler.Leaderboard)
		api.GET("/sessions/:id/attendees", authed, mentorOnly, attendanceHandler.Attendees)
		api.GET("/sessions/:id/summary", authed, mentorOnly, analyticsHandler.SessionSummary)
		api.GET("/sessions/:id/recordings", authed, recordingHandler.ListBySession)

		api.GET("/streaming/channel", authed, mentorOnly, streamHandler.GetMyChannel)
		api.GET("/streams/active", streamHandler.ListActive)

		api.POST("/quizzes", authed, mentorOnly, quizHandler.Create)
		api.POST("/quizzes/:id/launch", authed, mentorOnly, quizHandler.Launch)
		api.POST("/quizzes/:id/close", authed, mentorOnly, quizHandler.Close)
		api.DELETE("/quizzes/:id", authed, mentorOnly, quizHandler.Delete)
		api.POST("/quizzes/:id/answer", authed, quizHandler.Answer)

		api.GET("/courses", courseHandler.List)
		api.GET("/courses/:id", courseHandler.Get)
		api.GET("/courses/:id/sessions", courseHandler.Sessions)
		api.POST("/courses", authed, mentorOnly, courseHandler.Create)
		api.PATCH("/courses/:id", authed, mentorOnly, courseHandler.Update)
		api.POST("/courses/:id/enroll", authed, courseHandler.Enroll)
		api.DELETE("/courses/:id/enroll", authed, courseHandler.Unenroll)

		api.GET("/me/enrollments", authed, courseHandler.MyEnrollments)
		api.GET("/me/courses", authed, mentorOnly, courseHandler.MyCourses)
		api.GET("/me/attendance", authed, attendanceHandler.MyHistory)
		api.GET("/me/overview", authed, mentorOnly, analyticsHandler.MentorOverview)

		api.POST("/mentors/invitations", authed, adminOnly, mentorHandler.Invite)
		api.GET("/mentors/invitations", authed, adminOnly, mentorHandler.ListPending)
		api.GET("/mentors/invitations/:token", mentorHandler.Validate)
		api.POST("/mentors/invitations/:token/accept", authed, mentorHandler.Accept)

		// The proxy is deliberately public; the engine holds no user data and
		// validation happens before the request leaves this process.
		api.POST("/recommendations", recommendationHandler.Recommend)
		api.GET("/recommendations/health", recommendationHandler.Health)

		api.POST("/webhooks/recordings", recordingHandler.Webhook)

		api.GET("/recordings/:id/download", authed, recordingHandler.Download)
	}

	router.GET("/ws", middleware.JWTAuthQuery(cfg.JWT.Secret), func(c *gin.Context) {
		userID, ok := middleware.UserIDFromContext(c)
		if !ok {
			response.Unauthorized(c, "authentication required")
			return
		}
		email, _ := c.Get(middleware.ContextEmail)
		name, _ := email.(string)
		realtime.ServeWs(hub, c, userID, name)
	})

	return router
}
