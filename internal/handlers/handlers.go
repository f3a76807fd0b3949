package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"slideflow/internal/ai"
	"slideflow/internal/config"
	"slideflow/internal/generation"
	"slideflow/internal/hooks"
	"slideflow/internal/middleware"
	"slideflow/internal/queue"
	"slideflow/internal/repository"
	"slideflow/internal/storage"
)

// linkRunner is the slice of the chain controller the trigger endpoint
// drives; satisfied by generation.Controller.
type linkRunner interface {
	RunLink(ctx context.Context, setID string, batchStart int) (generation.BatchResult, error)
}

type HandlerSet struct {
	log        zerolog.Logger
	cfg        *config.AppConfig
	db         *pgxpool.Pool
	cache      *redis.Client
	store      *storage.ObjectStore
	videos     *repository.VideoRepository
	sets       *repository.SetRepository
	images     *repository.ImageRepository
	hookRepo   *repository.HookRepository
	tiktok     *ai.TikTokClient
	genService *generation.Service
	processor  *generation.Processor
	controller linkRunner
	hookSvc    *hooks.Service
	webhook    *hooks.WebhookHandler
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	videoRepo := repository.NewVideoRepository(db)
	setRepo := repository.NewSetRepository(db)
	imageRepo := repository.NewImageRepository(db)
	hookRepo := repository.NewHookRepository(db)

	producer := queue.NewProducer(cache, cfg.Redis.Stream)
	editor := ai.NewImageEditor(cfg.OpenAI)
	replicate := ai.NewReplicateClient(cfg.Replicate)
	tiktok := ai.NewTikTokClient(cfg.TikTok)

	processor := generation.NewProcessor(setRepo, imageRepo, videoRepo, editor, store,
		cfg.Generation.BatchSize, cfg.Generation.ProviderSlots, cfg.Generation.FallbackPrompt, log)
	controller := generation.NewController(processor, producer, setRepo, log)
	genService := generation.NewService(setRepo, imageRepo, videoRepo, producer, log)

	hookSvc := hooks.NewService(hookRepo, replicate, cfg.HTTP.PublicURL, log)
	reconciler := hooks.NewReconciler(hookRepo, store, log)
	webhook := hooks.NewWebhookHandler(cfg.Replicate.WebhookSecret, reconciler, log)

	return HandlerSet{
		log:        log,
		cfg:        cfg,
		db:         db,
		cache:      cache,
		store:      store,
		videos:     videoRepo,
		sets:       setRepo,
		images:     imageRepo,
		hookRepo:   hookRepo,
		tiktok:     tiktok,
		genService: genService,
		processor:  processor,
		controller: controller,
		hookSvc:    hookSvc,
		webhook:    webhook,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	v1.POST("/auth/login", h.Login)
	v1.POST("/webhooks/replicate", h.ReplicateWebhook)

	trigger := v1.Group("/generation")
	trigger.Use(middleware.TriggerAuth(h.cfg))
	trigger.POST("/process", h.ProcessBatch)

	protected := v1.Group("")
	protected.Use(middleware.OperatorAuth(h.cfg))
	{
		protected.POST("/videos/ingest", h.IngestVideo)
		protected.GET("/videos", h.ListVideos)
		protected.GET("/videos/:id", h.GetVideo)

		protected.POST("/generation/sets", h.CreateSets)
		protected.GET("/generation/sets", h.ListSets)
		protected.GET("/generation/sets/:id", h.GetSet)
		protected.PATCH("/generation/sets/:id", h.UpdateSet)
		protected.DELETE("/generation/sets/:id", h.DeleteSet)
		protected.POST("/generation/sets/:id/images/:imageId/retry", h.RetryImage)

		protected.POST("/hooks/sessions", h.CreateHookSession)
		protected.GET("/hooks/sessions/:id", h.GetHookSession)
		protected.POST("/hooks/videos/:videoId/used", h.MarkHookVideoUsed)
	}
}
