package api

import (
	"errors"
	"log/slog"
	"net/http"

	"neurochat/internal/code"
	"neurochat/internal/constants"
	"neurochat/internal/llm"
)

// CodeHandler serves the single-shot code-assistant endpoints. Nothing here
// touches the transcript; each request is one completion.
type CodeHandler struct {
	codes *code.Service
}

func NewCodeHandler(codes *code.Service) *CodeHandler {
	return &CodeHandler{codes: codes}
}

// POST /api/v1/code/analyze
type AnalyzeCodeRequest struct {
	Code     string `json:"code" validate:"required"`
	Language string `json:"language" validate:"omitempty,max=64"`
}

func (h *CodeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeCodeRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	result, err := h.codes.Analyze(r.Context(), req.Code, req.Language)
	if err != nil {
		h.writeCodeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /api/v1/code/fix
type FixCodeRequest struct {
	Code     string `json:"code" validate:"required"`
	Error    string `json:"error" validate:"omitempty,max=4096"`
	Language string `json:"language" validate:"omitempty,max=64"`
}

func (h *CodeHandler) Fix(w http.ResponseWriter, r *http.Request) {
	var req FixCodeRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	result, err := h.codes.Fix(r.Context(), req.Code, req.Error, req.Language)
	if err != nil {
		h.writeCodeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /api/v1/code/explain
type ExplainCodeRequest struct {
	Code     string `json:"code" validate:"required"`
	Language string `json:"language" validate:"omitempty,max=64"`
}

func (h *CodeHandler) Explain(w http.ResponseWriter, r *http.Request) {
	var req ExplainCodeRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	result, err := h.codes.Explain(r.Context(), req.Code, req.Language)
	if err != nil {
		h.writeCodeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /api/v1/code/generate
type GenerateCodeRequest struct {
	Prompt   string `json:"prompt" validate:"required"`
	Language string `json:"language" validate:"required,max=64"`
}

func (h *CodeHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateCodeRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	result, err := h.codes.Generate(r.Context(), req.Prompt, req.Language)
	if err != nil {
		h.writeCodeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *CodeHandler) writeCodeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, code.ErrEmptySource), errors.Is(err, code.ErrEmptyPrompt):
		badRequest(w, err.Error())
	case errors.Is(err, code.ErrSourceTooLong):
		writeError(w, http.StatusBadRequest, constants.ErrCodeMessageTooLong, "Code snippet is too long")
	case errors.Is(err, llm.ErrUpstream):
		upstreamError(w, "The assistant is currently unavailable, please retry")
	default:
		slog.Error("code operation failed", "error", err)
		internalError(w)
	}
}
