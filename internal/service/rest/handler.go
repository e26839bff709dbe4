// Package rest — HTTP API поверх каталога, рабочих процессов заказа и сессий панелей (gin).
package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/access"
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/ordering"
	"github.com/vladislavdragonenkov/orderdesk/internal/ui"
)

// HeaderPermissionProfile — заголовок с именем профиля прав.
const HeaderPermissionProfile = "X-Permission-Profile"

// Reader — чтение каталога и заказов.
type Reader interface {
	ui.CatalogLister
	ui.OrderReader
}

// Workflow — рабочие процессы заказа.
type Workflow interface {
	AddEntriesToOrder(ctx context.Context, entryIDs []string, orderID string) ordering.Result
	ConfirmOrderDetailed(ctx context.Context, orderID string) ordering.Result
	Timeline(ctx context.Context, orderID string) ([]domain.TimelineEvent, error)
	ConfirmationAttempts(ctx context.Context, orderID string) ([]domain.ConfirmationAttempt, error)
}

// Handler обслуживает /v1.
type Handler struct {
	reader   Reader
	workflow Workflow
	sessions *ui.SessionRegistry
	profiles *access.Registry
	logger   *log.Entry
}

// NewHandler создаёт handler. sessions может быть nil: тогда маршруты /v1/sessions не регистрируются.
func NewHandler(reader Reader, workflow Workflow, sessions *ui.SessionRegistry, profiles *access.Registry, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "rest")
	}
	if profiles == nil {
		profiles = access.DefaultRegistry()
	}
	return &Handler{
		reader:   reader,
		workflow: workflow,
		sessions: sessions,
		profiles: profiles,
		logger:   logger,
	}
}

// Register вешает маршруты на группу /v1.
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/v1", h.permissionProfile)

	v1.GET("/catalog", h.ListCatalog)
	v1.GET("/orders/:id", h.GetOrder)
	v1.GET("/orders/:id/lines", h.ListLines)
	v1.POST("/orders/:id/lines", h.AddLines)
	v1.POST("/orders/:id/confirm", h.Confirm)
	v1.GET("/orders/:id/timeline", h.Timeline)
	v1.GET("/orders/:id/confirmations", h.Confirmations)

	if h.sessions != nil {
		v1.POST("/sessions", h.CreateSession)
		v1.GET("/sessions/:sid", h.GetSession)
		v1.POST("/sessions/:sid/picker/more", h.PickerMore)
		v1.POST("/sessions/:sid/picker/select", h.PickerSelect)
		v1.POST("/sessions/:sid/lines/more", h.LinesMore)
		v1.POST("/sessions/:sid/lines/confirm", h.LinesConfirm)
		v1.DELETE("/sessions/:sid", h.DeleteSession)
	}
}

// permissionProfile кладёт профиль из заголовка в ctx запроса. Без заголовка — профиль по умолчанию.
func (h *Handler) permissionProfile(c *gin.Context) {
	profile := h.profiles.Default()
	if name := c.GetHeader(HeaderPermissionProfile); name != "" {
		p, ok := h.profiles.Lookup(name)
		if !ok {
			c.AbortWithStatusJSON(errUnknownProfile.Status, errUnknownProfile)
			return
		}
		profile = p
	}
	c.Request = c.Request.WithContext(access.WithProfile(c.Request.Context(), profile))
	c.Next()
}

func (h *Handler) ListCatalog(c *gin.Context) {
	entries, err := h.reader.ListAvailableCatalogEntries(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(entries, fromEntry))
}

func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.reader.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, fromOrder(order))
}

func (h *Handler) ListLines(c *gin.Context) {
	lines, err := h.reader.ListOrderLines(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(lines, fromLine))
}

// AddLines — POST /v1/orders/:id/lines {"entryIds":[...]}.
func (h *Handler) AddLines(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(errInvalidPayload.Status, errInvalidPayload)
		return
	}
	h.writeResult(c, h.workflow.AddEntriesToOrder(c.Request.Context(), req.EntryIDs, c.Param("id")))
}

func (h *Handler) Confirm(c *gin.Context) {
	h.writeResult(c, h.workflow.ConfirmOrderDetailed(c.Request.Context(), c.Param("id")))
}

func (h *Handler) Timeline(c *gin.Context) {
	events, err := h.workflow.Timeline(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) Confirmations(c *gin.Context) {
	attempts, err := h.workflow.ConfirmationAttempts(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempts)
}

// writeResult отдаёт итог рабочего процесса: 200 при успехе или частичном успехе,
// иначе статус по причине отказа с тем же телом.
func (h *Handler) writeResult(c *gin.Context, result ordering.Result) {
	status := http.StatusOK
	if !result.OK() {
		status = mapError(result.Err).Status
	}
	c.JSON(status, fromResult(result))
}

func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(errInvalidPayload.Status, errInvalidPayload)
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), req.OrderID)
	if err != nil && domain.IsNotFound(err) {
		_ = h.sessions.Remove(session.ID)
		abortWithError(c, err)
		return
	}
	if err != nil {
		// Панель в состоянии Error остаётся открытой и показывает причину.
		h.logger.WithError(err).WithField("order_id", req.OrderID).Warn("session opened with load error")
	}
	c.JSON(http.StatusCreated, fromSession(session))
}

func (h *Handler) GetSession(c *gin.Context) {
	h.withSession(c, func(*ui.Session) error { return nil })
}

func (h *Handler) PickerMore(c *gin.Context) {
	h.withSession(c, func(s *ui.Session) error {
		s.Picker.LoadMore()
		return nil
	})
}

func (h *Handler) LinesMore(c *gin.Context) {
	h.withSession(c, func(s *ui.Session) error {
		s.Lines.LoadMore()
		return nil
	})
}

func (h *Handler) PickerSelect(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(errInvalidPayload.Status, errInvalidPayload)
		return
	}
	h.withSessionResult(c, func(s *ui.Session) ordering.Result {
		return s.Picker.AddSelected(c.Request.Context(), req.EntryIDs)
	})
}

func (h *Handler) LinesConfirm(c *gin.Context) {
	h.withSessionResult(c, func(s *ui.Session) ordering.Result {
		return s.Lines.Confirm(c.Request.Context())
	})
}

func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Remove(c.Param("sid")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) withSession(c *gin.Context, fn func(*ui.Session) error) {
	session, err := h.sessions.Get(c.Param("sid"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := fn(session); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, fromSession(session))
}

// withSessionResult отдаёт итог действия вместе со снимком сессии.
func (h *Handler) withSessionResult(c *gin.Context, fn func(*ui.Session) ordering.Result) {
	session, err := h.sessions.Get(c.Param("sid"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	result := fn(session)
	status := http.StatusOK
	if !result.OK() {
		status = mapError(result.Err).Status
	}
	c.JSON(status, gin.H{
		"result":  fromResult(result),
		"session": fromSession(session),
	})
}
