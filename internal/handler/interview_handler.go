package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resumeintel/interview-backend/internal/model"
	"github.com/resumeintel/interview-backend/internal/response"
	"github.com/resumeintel/interview-backend/internal/service"
	"github.com/resumeintel/interview-backend/internal/validator"
)

// InterviewHandler exposes the proctoring protocol over REST. Clients that
// prefer a persistent connection use the WebSocket stream instead; both
// paths converge on the same service.
type InterviewHandler struct {
	interviews *service.InterviewService
	questions  *service.QuestionService
}

// NewInterviewHandler creates a new InterviewHandler.
func NewInterviewHandler(interviews *service.InterviewService, questions *service.QuestionService) *InterviewHandler {
	return &InterviewHandler{interviews: interviews, questions: questions}
}

// StartSessionRequest is the payload for starting an interview session.
type StartSessionRequest struct {
	CandidateID string `json:"candidate_id" binding:"required,min=4,max=128"`
}

// CheatingEventRequest reports a client-detected anomaly. No timestamp
// field exists on purpose: the server stamps accepted events itself.
type CheatingEventRequest struct {
	EventType model.EventType `json:"event_type" binding:"required,min=2,max=64"`
}

// AnswerRequest carries a finalized speech-to-text transcript.
type AnswerRequest struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
}

// StartSession godoc
// POST /api/v1/interview/sessions
func (h *InterviewHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.interviews.StartSession(c.Request.Context(), req.CandidateID); err != nil {
		if errors.Is(err, service.ErrAlreadyStarted) {
			response.Fail(c, http.StatusConflict, response.ErrAlreadyStarted)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"candidate_id": req.CandidateID, "state": model.SessionStateActive})
}

// SubmitCheatingEvent godoc
// POST /api/v1/interview/sessions/:candidate_id/events
func (h *InterviewHandler) SubmitCheatingEvent(c *gin.Context) {
	var req CheatingEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	snap, err := h.interviews.SubmitCheatingEvent(c.Request.Context(), c.Param("candidate_id"), req.EventType)
	if err != nil {
		failSignal(c, err)
		return
	}

	response.Success(c, http.StatusOK, snap)
}

// SubmitFrameSignal godoc
// POST /api/v1/interview/sessions/:candidate_id/frames
func (h *InterviewHandler) SubmitFrameSignal(c *gin.Context) {
	var metrics model.FrameMetrics
	if fields := validator.Bind(c, &metrics); fields != nil {
		// A malformed tick is dropped, not a session fault; the client keeps
		// streaming.
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidPayload, fields)
		return
	}

	snap, err := h.interviews.SubmitFrameSignal(c.Request.Context(), c.Param("candidate_id"), metrics)
	if err != nil {
		failSignal(c, err)
		return
	}

	response.Success(c, http.StatusOK, snap)
}

// SubmitAnswer godoc
// POST /api/v1/interview/sessions/:candidate_id/answers
func (h *InterviewHandler) SubmitAnswer(c *gin.Context) {
	var req AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.interviews.SubmitAnswer(c.Request.Context(), c.Param("candidate_id"), req.Question, req.Answer)
	if err != nil {
		failSignal(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// EndSession godoc
// POST /api/v1/interview/sessions/:candidate_id/end
// Idempotent: repeat calls return the already-finalized summary.
func (h *InterviewHandler) EndSession(c *gin.Context) {
	summary, err := h.interviews.EndSession(c.Request.Context(), c.Param("candidate_id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"summary": summary})
}

// GetSummary godoc
// GET /api/v1/interview/sessions/:candidate_id/summary
func (h *InterviewHandler) GetSummary(c *gin.Context) {
	summary, err := h.interviews.GetSummary(c.Param("candidate_id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"summary": summary})
}

// GetMetrics godoc
// GET /api/v1/interview/sessions/:candidate_id/metrics
func (h *InterviewHandler) GetMetrics(c *gin.Context) {
	snap, err := h.interviews.GetMetrics(c.Param("candidate_id"))
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, snap)
}

// GetQuestions godoc
// GET /api/v1/interview/questions?pattern=
func (h *InterviewHandler) GetQuestions(c *gin.Context) {
	questions, err := h.questions.Load(c.Query("pattern"))
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// failSignal maps signal-path service errors onto the boundary taxonomy.
func failSignal(c *gin.Context, err error) {
	if errors.Is(err, service.ErrSessionNotActive) {
		response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
		return
	}
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}
