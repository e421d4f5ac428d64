package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/raine/telegram-skinwise-bot/internal/analysis"
	"github.com/raine/telegram-skinwise-bot/internal/entitlement"
	"github.com/raine/telegram-skinwise-bot/internal/followup"
	"github.com/raine/telegram-skinwise-bot/internal/imaging"
	"github.com/raine/telegram-skinwise-bot/internal/llm"
)

const (
	// multipartOverhead is the body allowance on top of the image for form
	// boundaries and headers.
	multipartOverhead = 1 << 20
	defaultListLimit  = 20
	maxListLimit      = 100
)

type profileResponse struct {
	UserID     string `json:"userId"`
	TrialCount int    `json:"trialCount"`
	HasPaid    bool   `json:"hasPaid"`
	Unlimited  bool   `json:"unlimited"`
}

func newProfileResponse(userID string, state entitlement.State) profileResponse {
	return profileResponse{
		UserID:     userID,
		TrialCount: state.TrialCount,
		HasPaid:    state.HasPaid,
		Unlimited:  state.Unlimited(),
	}
}

type suitabilityResponse struct {
	AnalysisID string                 `json:"analysisId"`
	Condition  string                 `json:"condition"`
	Report     *llm.SuitabilityReport `json:"report"`
}

type followUpRequest struct {
	History  []llm.Turn `json:"history"`
	Question string     `json:"question"`
}

type followUpResponse struct {
	Reply   llm.Turn   `json:"reply"`
	History []llm.Turn `json:"history"`
}

func (s *Server) handleEnsureProfile(c *gin.Context) {
	userID := c.GetString(userIDKey)
	state, err := s.svc.Guard.EnsureProfile(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, &analysis.Error{Kind: analysis.KindProfileUpdateFailed, Err: err})
		return
	}
	c.JSON(http.StatusOK, newProfileResponse(userID, state))
}

func (s *Server) handleGetProfile(c *gin.Context) {
	userID := c.GetString(userIDKey)
	state, err := s.svc.Guard.State(c.Request.Context(), userID)
	if err != nil {
		kind := analysis.KindProfileUpdateFailed
		if errors.Is(err, entitlement.ErrProfileNotFound) {
			kind = analysis.KindProfileNotFound
		}
		abortWithError(c, &analysis.Error{Kind: kind, Err: err})
		return
	}
	c.JSON(http.StatusOK, newProfileResponse(userID, state))
}

func (s *Server) handleAnalyze(c *gin.Context) {
	userID := c.GetString(userIDKey)
	release, ok := s.acquire(c, userID)
	if !ok {
		return
	}
	defer release()

	img, ok := s.readImage(c)
	if !ok {
		return
	}

	result, err := s.svc.Analyzer.Analyze(c.Request.Context(), userID, img)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) handleListAnalyses(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			abortWithCode(c, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer.")
			return
		}
		limit = min(n, maxListLimit)
	}

	results, err := s.svc.History.List(c.Request.Context(), c.GetString(userIDKey), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": results})
}

func (s *Server) handleGetAnalysis(c *gin.Context) {
	result, ok := s.loadAnalysis(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleReadIngredients(c *gin.Context) {
	userID := c.GetString(userIDKey)
	release, ok := s.acquire(c, userID)
	if !ok {
		return
	}
	defer release()

	img, ok := s.readImage(c)
	if !ok {
		return
	}

	report, err := s.svc.Ingredients.ReadIngredients(c.Request.Context(), userID, img)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleCheckSuitability(c *gin.Context) {
	userID := c.GetString(userIDKey)
	result, ok := s.loadAnalysis(c)
	if !ok {
		return
	}

	release, ok := s.acquire(c, userID)
	if !ok {
		return
	}
	defer release()

	img, ok := s.readImage(c)
	if !ok {
		return
	}

	report, err := s.svc.Ingredients.CheckSuitability(c.Request.Context(), userID, result.Condition, img)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, suitabilityResponse{
		AnalysisID: result.ID,
		Condition:  result.Condition,
		Report:     report,
	})
}

func (s *Server) handleFollowUp(c *gin.Context) {
	userID := c.GetString(userIDKey)
	var req followUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		abortWithCode(c, http.StatusBadRequest, "invalid_request", "Request body must be JSON with a question.")
		return
	}

	result, ok := s.loadAnalysis(c)
	if !ok {
		return
	}

	conv, err := followup.RestoreConversation(result, req.History)
	if err != nil {
		_ = c.Error(err)
		abortWithCode(c, http.StatusBadRequest, "invalid_history", "History must alternate user and assistant turns.")
		return
	}

	release, ok := s.locks.TryAcquire("followup:" + userID + ":" + result.ID)
	if !ok {
		abortWithCode(c, http.StatusConflict, "turn_in_progress", "Please wait for the previous answer.")
		return
	}
	defer release()

	reply, err := s.svc.FollowUps.SubmitTurn(c.Request.Context(), conv, req.Question)
	switch {
	case errors.Is(err, followup.ErrEmptyQuestion):
		abortWithCode(c, http.StatusBadRequest, "empty_question", "Please type a question.")
		return
	case errors.Is(err, followup.ErrConversationFull):
		abortWithCode(c, http.StatusConflict, "conversation_full",
			fmt.Sprintf("This conversation reached its limit of %d messages. Start a new analysis to keep asking.", s.svc.FollowUps.MaxTurns()))
		return
	case errors.Is(err, followup.ErrTurnInProgress):
		abortWithCode(c, http.StatusConflict, "turn_in_progress", "Please wait for the previous answer.")
		return
	case err != nil:
		abortWithError(c, &analysis.Error{Kind: analysis.KindFollowUpFailed, Err: err})
		return
	}

	c.JSON(http.StatusOK, followUpResponse{Reply: reply, History: conv.History()})
}

func (s *Server) acquire(c *gin.Context, userID string) (func(), bool) {
	release, ok := s.locks.TryAcquire(userID)
	if !ok {
		abortWithCode(c, http.StatusConflict, "analysis_in_progress", "An analysis is already running. Please wait for it to finish.")
		return nil, false
	}
	return release, true
}

func (s *Server) loadAnalysis(c *gin.Context) (*analysis.Result, bool) {
	id := c.Param("id")
	result, err := s.svc.History.Get(c.Request.Context(), c.GetString(userIDKey), id)
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	if result == nil {
		abortWithCode(c, http.StatusNotFound, "analysis_not_found", "No analysis with that ID.")
		return nil, false
	}
	return result, true
}

// readImage reads the "image" form field and prepares it for inference. On
// failure it writes the response and returns false.
func (s *Server) readImage(c *gin.Context) (llm.Image, bool) {
	maxBytes := s.opts.MaxImageBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

	header, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, analysis.ImageError(fmt.Errorf("%w: request body exceeds %d bytes", imaging.ErrTooLarge, tooLarge.Limit)))
			return llm.Image{}, false
		}
		_ = c.Error(err)
		abortWithCode(c, http.StatusBadRequest, "missing_image", `Attach the photo as the "image" form field.`)
		return llm.Image{}, false
	}
	if err := imaging.CheckSize(header.Size, maxBytes); err != nil {
		abortWithError(c, analysis.ImageError(err))
		return llm.Image{}, false
	}

	f, err := header.Open()
	if err != nil {
		abortWithError(c, analysis.ImageError(err))
		return llm.Image{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		abortWithError(c, analysis.ImageError(err))
		return llm.Image{}, false
	}

	img, err := analysis.PrepareImage(data, maxBytes)
	if err != nil {
		abortWithError(c, err)
		return llm.Image{}, false
	}
	return img, true
}
