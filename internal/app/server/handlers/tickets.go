package handlers

import (
	"net/http"

	"assist/internal/core/services"
	"assist/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// TicketHandler serves the account side of the inbox.
type TicketHandler struct {
	tickets *services.TicketService
}

func NewTicketHandler(tickets *services.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

func (h *TicketHandler) List(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	page, err := h.tickets.AccountTickets(c.Request.Context(), middleware.AccountID(c), q.params())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *TicketHandler) Get(c *gin.Context) {
	var uri ticketURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.tickets.AccountTicket(c.Request.Context(), uri.TicketID, middleware.AccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) Messages(c *gin.Context) {
	var uri ticketURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	page, err := h.tickets.AccountMessages(c.Request.Context(), uri.TicketID, middleware.AccountID(c), q.params())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *TicketHandler) PostMessage(c *gin.Context) {
	var uri ticketURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	receipt, err := h.tickets.PostAccountMessage(c.Request.Context(), uri.TicketID, middleware.AccountID(c), req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *TicketHandler) PostImages(c *gin.Context) {
	var uri ticketURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	files, err := formFiles(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	receipt, err := h.tickets.PostAccountImages(c.Request.Context(), uri.TicketID, middleware.AccountID(c), files)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *TicketHandler) ToggleStatus(c *gin.Context) {
	var uri ticketURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.tickets.ToggleStatus(c.Request.Context(), uri.TicketID, middleware.AccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
