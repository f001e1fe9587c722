package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"clause-agent/session"
	"clause-agent/web/types"
	"clause-agent/workflow"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	msgProcessing = "处理中"
	msgDone       = "处理完成"

	errEnvelopePrefix = "系统处理失败：%s"
)

// TurnRunner executes one conversational turn against a state.
type TurnRunner interface {
	Run(ctx context.Context, state *workflow.State) error
}

// AskHandler serves the question-inquiry endpoint. The whole turn runs to
// completion under the session lock before any bytes are written, so a
// broken stream never leaves half-applied conversation state.
type AskHandler struct {
	engine      TurnRunner
	sessions    *session.Store
	logger      *zap.Logger
	streamDelay time.Duration
}

func NewAskHandler(engine TurnRunner, sessions *session.Store, logger *zap.Logger, streamDelay time.Duration) *AskHandler {
	return &AskHandler{
		engine:      engine,
		sessions:    sessions,
		logger:      logger,
		streamDelay: streamDelay,
	}
}

type turnResult struct {
	answer      string
	productList []string
}

func (h *AskHandler) Ask(c *gin.Context) {
	var req types.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewEnvelope(
			http.StatusBadRequest, fmt.Sprintf(errEnvelopePrefix, err), nil, nil))
		return
	}

	result, err := h.runTurn(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Turn failed",
			zap.String("user_id", req.UserID), zap.Error(err))
		if req.WantsStream() {
			h.streamError(c, err)
			return
		}
		c.JSON(http.StatusInternalServerError, types.NewEnvelope(
			http.StatusInternalServerError, fmt.Sprintf(errEnvelopePrefix, err), nil, nil))
		return
	}

	if req.WantsStream() {
		h.streamAnswer(c, result)
		return
	}
	c.JSON(http.StatusOK, types.NewEnvelope(
		http.StatusOK, msgDone, &result.answer, result.productList))
}

// runTurn appends the question, drives the workflow, and extracts the
// reply, all under the session lock.
func (h *AskHandler) runTurn(ctx context.Context, req *types.AskRequest) (*turnResult, error) {
	var result turnResult

	err := h.sessions.Update(req.UserID, func(state *workflow.State) error {
		before := len(state.Messages)
		state.AppendUser(req.UserQuestion)

		if err := h.engine.Run(ctx, state); err != nil {
			return err
		}

		// A turn that errored without leaving a reply has nothing to
		// show the user; surface it as a failure envelope instead.
		replied := len(state.Messages) > before+1 &&
			state.Messages[len(state.Messages)-1].Role == workflow.RoleAssistant
		if !replied {
			if state.Error != "" {
				return fmt.Errorf("%s", state.Error)
			}
			return fmt.Errorf("未生成回答")
		}

		result.answer = state.LastAssistantReply()
		result.productList = append([]string(nil), state.MatchedProducts()...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.productList == nil {
		result.productList = []string{}
	}
	return &result, nil
}

// streamAnswer replays the finished answer sentence by sentence as SSE
// frames, with a fixed delay between frames.
func (h *AskHandler) streamAnswer(c *gin.Context, result *turnResult) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	sentences := strings.Split(result.answer, "。")
	frames := make([]string, 0, len(sentences))
	for i, sentence := range sentences {
		if sentence == "" {
			continue
		}
		if i < len(sentences)-1 {
			sentence += "。"
		}
		frames = append(frames, sentence)
	}

	for i, frame := range frames {
		message := msgProcessing
		if i == len(frames)-1 {
			message = msgDone
		}
		sentence := frame
		h.writeFrame(c, types.NewEnvelope(http.StatusOK, message, &sentence, result.productList))
		c.Writer.Flush()
		if i < len(frames)-1 {
			time.Sleep(h.streamDelay)
		}
	}

	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	c.Writer.Flush()
}

func (h *AskHandler) streamError(c *gin.Context, err error) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	h.writeFrame(c, types.NewEnvelope(
		http.StatusInternalServerError, fmt.Sprintf(errEnvelopePrefix, err), nil, nil))
	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	c.Writer.Flush()
}

func (h *AskHandler) writeFrame(c *gin.Context, envelope types.Envelope) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		h.logger.Error("Failed to marshal stream frame", zap.Error(err))
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
}
