package http

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	storyUC "github.com/khoahotran/stories-backend/internal/application/usecase/story"
	"github.com/khoahotran/stories-backend/internal/domain/story"
	"github.com/khoahotran/stories-backend/pkg/apperror"
	"github.com/khoahotran/stories-backend/pkg/logger"
)

const formFieldFiles = "files"

type StoryHandler struct {
	createStoryUseCase *storyUC.CreateStoryUseCase
	getTrayUseCase     *storyUC.GetTrayUseCase
	getStoryUseCase    *storyUC.GetStoryUseCase
	recordViewUseCase  *storyUC.RecordViewUseCase
	listViewersUseCase *storyUC.ListViewersUseCase
	logger             logger.Logger
}

func NewStoryHandler(
	createUC *storyUC.CreateStoryUseCase,
	trayUC *storyUC.GetTrayUseCase,
	getUC *storyUC.GetStoryUseCase,
	viewUC *storyUC.RecordViewUseCase,
	viewersUC *storyUC.ListViewersUseCase,
	log logger.Logger,
) *StoryHandler {
	return &StoryHandler{
		createStoryUseCase: createUC,
		getTrayUseCase:     trayUC,
		getStoryUseCase:    getUC,
		recordViewUseCase:  viewUC,
		listViewersUseCase: viewersUC,
		logger:             log,
	}
}

func (h *StoryHandler) CreateStory(c *gin.Context) {
	userID, ok := GetUserIDFromGinContext(c)
	if !ok {
		c.Error(apperror.NewUnauthorized("user information not found", nil))
		return
	}

	var headers []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		headers = form.File[formFieldFiles]
	}
	if len(headers) > story.MaxSlides {
		c.Error(apperror.NewInvalidInput("a story accepts at most 10 files", story.ErrTooManyMedia))
		return
	}

	files := make([]storyUC.MediaFile, len(headers))
	for i, fh := range headers {
		fh := fh
		files[i] = storyUC.MediaFile{
			Filename: fh.Filename,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		}
	}

	output, err := h.createStoryUseCase.Execute(c.Request.Context(), storyUC.CreateStoryInput{
		OwnerID:    userID,
		Files:      files,
		Visibility: c.PostForm("visibility"),
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"story": ToStoryDTO(output.Story, nil)})
}

func (h *StoryHandler) GetTray(c *gin.Context) {
	userID, ok := GetUserIDFromGinContext(c)
	if !ok {
		c.Error(apperror.NewUnauthorized("user information not found", nil))
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	cursor, err := ParseCursor(c.Query("cursor"))
	if err != nil {
		c.Error(apperror.NewInvalidInput("cursor is malformed", err))
		return
	}

	output, err := h.getTrayUseCase.Execute(c.Request.Context(), storyUC.GetTrayInput{
		ViewerID: userID,
		Limit:    limit,
		Cursor:   cursor,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToTrayResponse(output))
}

func (h *StoryHandler) GetStory(c *gin.Context) {
	storyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperror.NewInvalidInput("invalid story ID", err))
		return
	}

	output, err := h.getStoryUseCase.Execute(c.Request.Context(), storyUC.GetStoryInput{StoryID: storyID})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"story": ToStoryDTO(output.Story, output.Owner)})
}

func (h *StoryHandler) RecordView(c *gin.Context) {
	userID, ok := GetUserIDFromGinContext(c)
	if !ok {
		c.Error(apperror.NewUnauthorized("user information not found", nil))
		return
	}

	var req RecordViewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(apperror.NewInvalidInput("invalid request data", err))
			return
		}
	}

	output, err := h.recordViewUseCase.Execute(c.Request.Context(), storyUC.RecordViewInput{
		RawStoryID: c.Param("id"),
		ViewerID:   userID,
		SlideIndex: req.SlideIndex,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"view": ToViewDTO(output.View)})
}

func (h *StoryHandler) ListViewers(c *gin.Context) {
	userID, ok := GetUserIDFromGinContext(c)
	if !ok {
		c.Error(apperror.NewUnauthorized("user information not found", nil))
		return
	}

	storyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperror.NewNotFound("story", c.Param("id")))
		return
	}

	output, err := h.listViewersUseCase.Execute(c.Request.Context(), storyUC.ListViewersInput{
		StoryID:  storyID,
		CallerID: userID,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"viewers": ToViewerDTOs(output.Viewers)})
}
