package handlers

import (
	"net/http"

	"assist/internal/core/domain"
	"assist/internal/core/services"

	"github.com/gin-gonic/gin"
)

// WidgetHandler serves the embedded widget. Visitors are anonymous: the
// widget key and the visitor id in the path are the whole scope.
type WidgetHandler struct {
	tickets *services.TicketService
	tenants *services.TenantService
}

func NewWidgetHandler(tickets *services.TicketService, tenants *services.TenantService) *WidgetHandler {
	return &WidgetHandler{tickets: tickets, tenants: tenants}
}

func (h *WidgetHandler) Settings(c *gin.Context) {
	var uri widgetURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	st, err := h.tenants.WidgetSettings(c.Request.Context(), uri.AppKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": st.Name, "color": st.Color, "url": st.URL})
}

func (h *WidgetHandler) CreateTicket(c *gin.Context) {
	var uri widgetURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	v := domain.Visitor{
		ID:       req.Visitor.ID,
		Name:     req.Visitor.Name,
		Email:    req.Visitor.Email,
		Language: req.Visitor.Language,
		Location: req.Visitor.Location,
	}
	created, err := h.tickets.CreateVisitorTicket(c.Request.Context(), uri.AppKey, v, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *WidgetHandler) List(c *gin.Context) {
	var uri visitorURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	page, err := h.tickets.VisitorTickets(c.Request.Context(), uri.VisitorID, uri.AppKey, q.params())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *WidgetHandler) Get(c *gin.Context) {
	var uri visitorTicketURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.tickets.VisitorTicket(c.Request.Context(), uri.TicketID, uri.VisitorID, uri.AppKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *WidgetHandler) Messages(c *gin.Context) {
	var uri visitorTicketURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	page, err := h.tickets.VisitorMessages(c.Request.Context(), uri.TicketID, uri.VisitorID, uri.AppKey, q.params())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *WidgetHandler) PostMessage(c *gin.Context) {
	var uri visitorTicketURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	receipt, err := h.tickets.PostVisitorMessage(c.Request.Context(), uri.TicketID, uri.VisitorID, uri.AppKey, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *WidgetHandler) PostImages(c *gin.Context) {
	var uri visitorTicketURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	files, err := formFiles(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	receipt, err := h.tickets.PostVisitorImages(c.Request.Context(), uri.TicketID, uri.VisitorID, uri.AppKey, files)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *WidgetHandler) UpdateVisitor(c *gin.Context) {
	var uri visitorTicketURI
	if err := c.ShouldBindUri(&uri); err != nil {
		badRequest(c, err)
		return
	}
	var req visitorDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.tickets.UpdateVisitorData(c.Request.Context(), uri.TicketID, uri.VisitorID, uri.AppKey, req.Name, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
