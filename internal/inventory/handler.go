package inventory

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/inventory", h.ListInventory)
	r.GET("/inventory/export", h.ExportInventory)
	r.GET("/inventory/export.csv", h.ExportInventoryCSV)
	r.GET("/inventory/:id", h.GetInventoryItem)
	r.POST("/inventory", h.CreateInventoryItem)
	r.PUT("/inventory/:id", h.UpdateInventoryItem)
	r.DELETE("/inventory/:id", h.DeleteInventoryItem)
}

// GET /inventory?search=&condition=&startDate=&endDate=&page=&limit=
func (h *Handler) ListInventory(c *gin.Context) {
	q := ListQuery{
		Search:    c.Query("search"),
		Condition: c.Query("condition"),
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
		Page:      atoiDef(c.Query("page"), DefaultPage),
		Limit:     atoiDef(c.Query("limit"), DefaultLimit),
	}
	res, err := h.svc.ListInventory(c.Request.Context(), q)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetInventoryItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res, err := h.svc.GetInventoryItem(c.Request.Context(), id)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateInventoryItem(c *gin.Context) {
	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateInventoryItem(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.Header("Location", "/api/inventory/"+strconv.FormatInt(res.ID, 10))
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) UpdateInventoryItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	if err := h.svc.UpdateInventoryItem(c.Request.Context(), id, req); err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Item updated successfully."})
}

func (h *Handler) DeleteInventoryItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteInventoryItem(c.Request.Context(), id); err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Item deleted successfully."})
}

// GET /inventory/export: スタイル付き xlsx
func (h *Handler) ExportInventory(c *gin.Context) {
	exp, err := h.svc.ExportInventory(c.Request.Context())
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	sendFile(c, exp)
}

// GET /inventory/export.csv?encoding=utf8|sjis
func (h *Handler) ExportInventoryCSV(c *gin.Context) {
	exp, err := h.svc.ExportInventoryCSV(c.Request.Context(), c.Query("encoding"))
	if err != nil {
		c.JSON(toHTTPStatus(err), apiErrFrom(err))
		return
	}
	sendFile(c, exp)
}

// ===== helpers =====

func sendFile(c *gin.Context, exp *Export) {
	// フロントがファイル名を読めるように
	c.Header("Access-Control-Expose-Headers", "Content-Disposition")
	c.Header("Content-Disposition", `attachment; filename="`+exp.Filename+`"`)
	c.Data(http.StatusOK, exp.ContentType, exp.Body)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apiErr(CodeInvalidArgument, "id must be a positive number"))
		return 0, false
	}
	return id, true
}

func atoiDef(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}
