// Package server exposes the conversational backend over HTTP: the chat
// WebSocket, the presentation upload endpoint, and static artifact media.
package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/advisor-core/server/internal/agent/completion"
	"github.com/advisor-core/server/internal/agent/graph"
	"github.com/advisor-core/server/internal/agent/model"
	"github.com/advisor-core/server/internal/artifact"
	"github.com/advisor-core/server/internal/mail"
	logx "github.com/advisor-core/server/pkg/logger"
)

// Deps bundles the collaborators the handlers need.
type Deps struct {
	// Graph is the per-connection engine template; each WebSocket session
	// builds its own Engine from it so refresh gates stay independent.
	Graph graph.Config

	Summary          completion.Completer
	Mailer           *mail.Mailer
	Meetings         model.MeetingRepository
	PresentationURLs model.PresentationURLRepository
	ConversationRepo model.ConversationRepository
}

type Server struct {
	config Config
	router *gin.Engine
}

// New wires all routes and returns a ready-to-run server.
func New(config Config, deps Deps) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/api/ws", HandleChatWebSocket(deps))
	router.POST("/api/ppt/upload", HandlePresentationUpload(deps.PresentationURLs, config.UploadDir, config.PublicBaseURL))
	router.Static(artifact.MediaRoute, config.UploadDir)

	return &Server{config: config, router: router}
}

// Run blocks serving HTTP until the listener fails.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	logx.Info().Str("addr", addr).Msg("Server listening")
	return s.router.Run(addr)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
