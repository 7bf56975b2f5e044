package handler

import (
	"net/http"
	"strconv"

	"cashregister/internal/dto"
	"cashregister/internal/service"

	"github.com/gin-gonic/gin"
)

type RegisterHandler struct {
	registers service.RegisterService
	payments  service.PaymentRecorder
	dashboard service.DashboardService
}

func NewRegisterHandler(registers service.RegisterService, payments service.PaymentRecorder, dashboard service.DashboardService) *RegisterHandler {
	return &RegisterHandler{registers: registers, payments: payments, dashboard: dashboard}
}

// Open godoc
// @Summary Open a register session
// @Tags register
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.OpenRegisterRequest true "Opening balance"
// @Success 201 {object} dto.SessionResponse
// @Failure 400 {object} apierror.ValidationError
// @Failure 409 {object} apierror.APIError
// @Router /v1/register/open [post]
func (h *RegisterHandler) Open(c *gin.Context) {
	var req dto.OpenRegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.registers.Open(c.Request.Context(), actorID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Close godoc
// @Summary Close a register session with a blind count
// @Tags register
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param body body dto.CloseRegisterRequest true "Declared closing balance"
// @Success 200 {object} dto.CloseRegisterResponse
// @Failure 400 {object} apierror.ValidationError
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/register/close/{id} [post]
func (h *RegisterHandler) Close(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CloseRegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.registers.Close(c.Request.Context(), actorID(c), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Current godoc
// @Summary Current register state
// @Tags register
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.CurrentRegisterResponse
// @Router /v1/register/current [get]
func (h *RegisterHandler) Current(c *gin.Context) {
	resp, err := h.registers.Current(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetSession godoc
// @Summary Register session with its ledger
// @Tags register
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/register/sessions/{id} [get]
func (h *RegisterHandler) GetSession(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.registers.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History godoc
// @Summary Paginated session history, newest first
// @Tags register
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} dto.SessionListResponse
// @Router /v1/register/sessions [get]
func (h *RegisterHandler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	resp, err := h.registers.History(c.Request.Context(), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RecordEntry godoc
// @Summary Record a sale, expense or debt payment
// @Tags register
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.RecordPaymentRequest true "Entry"
// @Success 201 {object} dto.EntryResponse
// @Failure 400 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/register/entries [post]
func (h *RegisterHandler) RecordEntry(c *gin.Context) {
	var req dto.RecordPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.payments.RecordPayment(c.Request.Context(), actorID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// CancelEntry godoc
// @Summary Cancel an entry with an offsetting entry
// @Tags register
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entry ID"
// @Success 201 {object} dto.EntryResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/register/entries/{id}/cancel [post]
func (h *RegisterHandler) CancelEntry(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.payments.RecordCancellation(c.Request.Context(), actorID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Dashboard godoc
// @Summary Sales dashboard
// @Tags register
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.DashboardResponse
// @Router /v1/register/dashboard [get]
func (h *RegisterHandler) Dashboard(c *gin.Context) {
	resp, err := h.dashboard.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
