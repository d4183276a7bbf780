package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/advisor-core/server/internal/agent/graph"
	"github.com/advisor-core/server/internal/agent/graph/conversations"
	"github.com/advisor-core/server/internal/agent/model"
	logx "github.com/advisor-core/server/pkg/logger"
)

// WSRequest is a client frame: the first frame must carry client_id, later
// frames are either chat messages or meeting_data reports.
type WSRequest struct {
	ClientID string          `json:"client_id,omitempty"`
	Type     string          `json:"type,omitempty"`
	Message  string          `json:"message,omitempty"`
	Meeting  *MeetingPayload `json:"meeting,omitempty"`
}

type MeetingPayload struct {
	MeetingLink  string `json:"meeting_link"`
	ScheduledFor string `json:"scheduled_for,omitempty"`
}

// WSResponse is a turn outcome frame. Type carries the UI mode.
type WSResponse struct {
	Type             string   `json:"type"`
	Message          string   `json:"message"`
	PresentationURLs []string `json:"presentation_urls"`
	PricingPageURL   string   `json:"pricing_page_url,omitempty"`
}

const (
	frameTypeMeetingData = "meeting_data"

	turnFailureApology = "Sorry, something went wrong on my side. Please try again."
	summaryUserWindow  = 50
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

func sendJSON(ws *websocket.Conn, v any) error {
	if err := ws.WriteJSON(v); err != nil {
		logx.Warn().Err(err).Msg("Failed to write WebSocket JSON")
		return err
	}
	return nil
}

func turnResponse(res *model.TurnResult) WSResponse {
	resp := WSResponse{
		Type:             string(res.UIMode),
		Message:          res.Message,
		PresentationURLs: []string{},
		PricingPageURL:   res.PricingPageURL,
	}
	if res.PresentationURL != "" {
		resp.PresentationURLs = append(resp.PresentationURLs, res.PresentationURL)
	}
	return resp
}

// HandleChatWebSocket owns one client session: handshake, per-connection
// turn engine, the frame loop, and the summary email on disconnect.
func HandleChatWebSocket(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logx.Error().Err(err).Msg("Failed to upgrade the websocket")
			return
		}
		defer ws.Close()

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		// Handshake: the first frame must identify the client. The client id
		// doubles as the durable thread id so history survives reconnects.
		var hello WSRequest
		if err := ws.ReadJSON(&hello); err != nil {
			logx.Info().Err(err).Msg("Websocket closed before handshake")
			return
		}
		threadID := strings.TrimSpace(hello.ClientID)
		if threadID == "" {
			sendJSON(ws, gin.H{"error": "client_id is required"})
			return
		}

		sessionID := uuid.New().String()
		logx.Info().Str("session_id", sessionID).Str("thread_id", threadID).Msg("Websocket session started")

		if err := sendJSON(ws, gin.H{
			"action":     "session_created",
			"session_id": sessionID,
		}); err != nil {
			return
		}

		engine, err := graph.BuildTurnEngine(ctx, deps.Graph)
		if err != nil {
			logx.Error().Err(err).Msg("Failed to build turn engine")
			sendJSON(ws, gin.H{"error": "service unavailable"})
			return
		}

		if greeting := deps.Graph.Prompt.Greeting; greeting != "" {
			if err := sendJSON(ws, WSResponse{
				Type:             string(model.UIModeNormal),
				Message:          greeting,
				PresentationURLs: []string{},
			}); err != nil {
				return
			}
		}

		// Reader pump: a closed peer must cancel an outstanding turn, so reads
		// happen on their own goroutine and frames arrive through a channel.
		// The unbuffered channel with a single consumer preserves arrival
		// order.
		frames := make(chan WSRequest)
		go func() {
			defer close(frames)
			defer cancel()
			for {
				var req WSRequest
				if err := ws.ReadJSON(&req); err != nil {
					logx.Info().Str("session_id", sessionID).Err(err).Msg("Websocket client disconnected")
					return
				}
				select {
				case frames <- req:
				case <-ctx.Done():
					return
				}
			}
		}()

		for req := range frames {
			if req.Type == frameTypeMeetingData {
				handleMeetingFrame(ctx, ws, deps, threadID, req.Meeting)
				continue
			}

			res, err := engine.Turn(ctx, model.QueryInput{
				ThreadID:  threadID,
				Utterance: req.Message,
			})
			if err != nil {
				logx.Error().Err(err).Str("thread_id", threadID).Msg("Turn failed")
				if sendJSON(ws, WSResponse{
					Type:             string(model.UIModeNormal),
					Message:          turnFailureApology,
					PresentationURLs: []string{},
				}) != nil {
					return
				}
				continue
			}

			if sendJSON(ws, turnResponse(res)) != nil {
				return
			}
		}

		if deps.Mailer != nil && deps.Mailer.Enabled() {
			go sendSessionSummary(deps, threadID)
		}
	}
}

func handleMeetingFrame(ctx context.Context, ws *websocket.Conn, deps Deps, threadID string, payload *MeetingPayload) {
	if payload == nil || deps.Meetings == nil {
		sendJSON(ws, gin.H{"error": "invalid meeting_data frame"})
		return
	}
	m := model.Meeting{
		ThreadID:     threadID,
		MeetingLink:  payload.MeetingLink,
		ScheduledFor: payload.ScheduledFor,
		CreatedAt:    time.Now().UTC(),
	}
	if err := deps.Meetings.SaveMeeting(ctx, m); err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("Error saving meeting")
		sendJSON(ws, gin.H{"error": "could not record meeting"})
		return
	}
	sendJSON(ws, WSResponse{
		Type:             string(model.UIModeNormal),
		Message:          "Great, your meeting is recorded. Talk to you soon!",
		PresentationURLs: []string{},
	})
}

// sendSessionSummary summarizes the thread with the cheap model and mails it
// to the sales inbox. Best-effort: failures are logged, never surfaced.
func sendSessionSummary(deps Deps, threadID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	history, err := deps.ConversationRepo.LoadHistory(ctx, threadID)
	if err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("Error loading history for summary")
		return
	}
	recent := conversations.RecentUserText(history.Messages, summaryUserWindow)
	if strings.TrimSpace(recent) == "" {
		return
	}

	summary, err := deps.Summary.Complete(ctx,
		"Summarize the following sales conversation for a follow-up email to the sales team. "+
			"Cover the visitor's needs, objections, and next steps in a short paragraph: "+recent)
	if err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("Error summarizing session")
		return
	}

	if err := deps.Mailer.SendSummary(ctx, threadID, summary); err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("Error sending summary email")
	}
}
