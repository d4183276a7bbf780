package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/advisor-core/server/internal/agent/completion"
	"github.com/advisor-core/server/internal/agent/graph"
	"github.com/advisor-core/server/internal/agent/model"
	"github.com/advisor-core/server/internal/agent/repo"
	"github.com/advisor-core/server/internal/agent/retriever"
	"github.com/advisor-core/server/internal/artifact"
	"github.com/advisor-core/server/internal/core"
	"github.com/advisor-core/server/internal/mail"
	"github.com/advisor-core/server/internal/server"
	logx "github.com/advisor-core/server/pkg/logger"
	pkgredis "github.com/advisor-core/server/pkg/redis"
)

// WeaviateConfig locates the knowledge-base vector store.
type WeaviateConfig struct {
	Host   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	Scheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	Class  string `envconfig:"WEAVIATE_CLASS" default:"KnowledgeChunk"`
}

// AppConfig defines all configurable parameters for the backend, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis    pkgredis.Config
	Weaviate WeaviateConfig
	Server   server.Config
	SMTP     mail.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Response     model.ResponseModelConfig
	Summary      model.SummaryModelConfig
	Prompt       model.PersonaPromptConfig
	ToolLinks    model.ToolLinksConfig
	Conversation model.ConversationConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(envCfg.Environment)})

	rdb, err := envCfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
	}
	defer rdb.Close()

	wvClient, err := weaviate.NewClient(weaviate.Config{
		Host:   envCfg.Weaviate.Host,
		Scheme: envCfg.Weaviate.Scheme,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Weaviate client")
	}

	ttl, err := time.ParseDuration(envCfg.Conversation.TTL)
	if err != nil {
		logx.Fatal().Str("ttl", envCfg.Conversation.TTL).Err(err).Msg("Invalid CONVERSATION_TTL")
	}

	repository := repo.NewRedisConversationRepository(rdb, ttl)

	store, err := artifact.NewFSStore(envCfg.Server.UploadDir, envCfg.Server.PublicBaseURL)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise artifact store")
	}

	// One shared pair of chat models; every connection builds its own engine
	// on top of them.
	models, err := completion.NewModels(ctx, completion.Config{
		APIKey:   envCfg.APIKey,
		BaseURL:  envCfg.BaseURL,
		Response: &envCfg.Response,
		Summary:  &envCfg.Summary,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise chat models")
	}

	graphCfg := graph.Config{
		APIKey:           envCfg.APIKey,
		BaseURL:          envCfg.BaseURL,
		ResponseModel:    envCfg.Response,
		SummaryModel:     envCfg.Summary,
		Prompt:           envCfg.Prompt,
		ToolLinks:        envCfg.ToolLinks,
		Conversation:     envCfg.Conversation,
		ConversationRepo: repository,
		CheckpointRepo:   repository,
		PresentationURLs: repository,
		Retriever:        retriever.NewWeaviateRetriever(wvClient, envCfg.Weaviate.Class),
		ArtifactStore:    store,
		Models:           models,
	}

	srv := server.New(envCfg.Server, server.Deps{
		Graph:            graphCfg,
		Summary:          models.Summary,
		Mailer:           mail.NewMailer(envCfg.SMTP),
		Meetings:         repository,
		PresentationURLs: repository,
		ConversationRepo: repository,
	})

	if err := srv.Run(); err != nil {
		logx.Fatal().Err(err).Msg("Server stopped")
	}
}
