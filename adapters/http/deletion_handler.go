package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/khoahotran/stories-backend/internal/application/usecase/cleanup"
)

type DeletionHandler struct {
	listDeletionsUseCase *cleanup.ListDeletionsUseCase
}

func NewDeletionHandler(listUC *cleanup.ListDeletionsUseCase) *DeletionHandler {
	return &DeletionHandler{listDeletionsUseCase: listUC}
}

// ListDeletions serves GET /admin/deletions?stuck=true&limit=&offset=.
func (h *DeletionHandler) ListDeletions(c *gin.Context) {
	stuck, _ := strconv.ParseBool(c.Query("stuck"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	output, err := h.listDeletionsUseCase.Execute(c.Request.Context(), cleanup.ListDeletionsInput{
		StuckOnly: stuck,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToDeletionListResponse(output))
}
