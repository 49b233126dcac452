package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/monkeysworks/monkeyswork-backend/internal/http/handlers/common"
	"github.com/monkeysworks/monkeyswork-backend/internal/pkg/apperror"
	"github.com/monkeysworks/monkeyswork-backend/internal/service"
)

// EvidenceHandler — загрузка и выдача файлов-доказательств по спорам.
type EvidenceHandler struct {
	evidence *service.EvidenceService
}

func NewEvidenceHandler(evidence *service.EvidenceService) *EvidenceHandler {
	return &EvidenceHandler{evidence: evidence}
}

// Upload POST /disputes/:id/evidence
// Принимает multipart-форму с полем file.
func (h *EvidenceHandler) Upload(c *gin.Context) {
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	h.upload(c, disputeID)
}

// UploadForm POST /evidence
// Вариант загрузки, где спор передаётся полем формы dispute_id.
func (h *EvidenceHandler) UploadForm(c *gin.Context) {
	disputeID, err := uuid.Parse(c.PostForm("dispute_id"))
	if err != nil {
		common.Fail(c, apperror.New(apperror.ErrCodeValidation, "поле dispute_id должно быть корректным UUID"))
		return
	}
	h.upload(c, disputeID)
}

func (h *EvidenceHandler) upload(c *gin.Context, disputeID uuid.UUID) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		common.Fail(c, apperror.New(apperror.ErrCodeValidation, "поле file обязательно"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		common.Fail(c, apperror.Wrap(err, apperror.ErrCodeBadRequest, "не удалось прочитать файл"))
		return
	}
	defer src.Close()

	f, err := h.evidence.Upload(c.Request.Context(), userID, common.IsAdmin(c), disputeID, fileHeader.Filename, src)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusCreated, f)
}

// List GET /disputes/:id/evidence
func (h *EvidenceHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	files, err := h.evidence.List(c.Request.Context(), userID, common.IsAdmin(c), disputeID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, files)
}

// Download GET /evidence/:id
func (h *EvidenceHandler) Download(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	evidenceID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	meta, blob, err := h.evidence.Open(c.Request.Context(), userID, common.IsAdmin(c), evidenceID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	defer blob.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.FileName))
	c.DataFromReader(http.StatusOK, meta.SizeBytes, meta.MimeType, blob, nil)
}
