package handler

import (
	"net/http"

	"tigu/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminUserHandler struct {
	authUC  *usecase.AuthUsecase
	adminUC *usecase.AdminUsecase
}

func NewAdminUserHandler(authUC *usecase.AuthUsecase, adminUC *usecase.AdminUsecase) *AdminUserHandler {
	return &AdminUserHandler{authUC: authUC, adminUC: adminUC}
}

// /admin 配下は全部「JWT必須 + token_version一致 + ADMIN限定」
func (h *AdminUserHandler) RegisterRoutes(e *echo.Echo, admin ...echo.MiddlewareFunc) {
	g := e.Group("/admin", admin...)

	g.POST("/users/:id/force-logout", h.ForceLogout)
	g.GET("/audit-logs", h.ListAuditLogs)
	g.GET("/audit-logs/:resource_type/:resource_id", h.ResourceHistory)
}

func (h *AdminUserHandler) ForceLogout(c echo.Context) error {
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	res, err := h.authUC.ForceLogout(c.Request().Context(), actorID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, res)
}

func (h *AdminUserHandler) ListAuditLogs(c echo.Context) error {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		return writeError(c, err)
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return writeError(c, err)
	}
	from, err := queryTime(c, "from")
	if err != nil {
		return writeError(c, err)
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return writeError(c, err)
	}

	logs, err := h.adminUC.ListAuditLogs(c.Request().Context(), usecase.ListAuditLogsInput{
		ActorUserID:  c.QueryParam("actor_user_id"),
		Action:       c.QueryParam("action"),
		ResourceType: c.QueryParam("resource_type"),
		ResourceID:   c.QueryParam("resource_id"),
		From:         from,
		To:           to,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, logs)
}

// 注文・見積などの変更履歴
func (h *AdminUserHandler) ResourceHistory(c echo.Context) error {
	logs, err := h.adminUC.ResourceHistory(c.Request().Context(), c.Param("resource_type"), c.Param("resource_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, logs)
}
