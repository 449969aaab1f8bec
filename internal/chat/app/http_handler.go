package app

import (
	"campus_chat_service/pkg/logger"
	"campus_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ChatHTTPHandler REST side of the chat service: history pages and
// attachment uploads
type ChatHTTPHandler struct {
	historyUC    *HistoryUseCase
	attachmentUC *AttachmentUseCase
}

// NewChatHTTPHandler create ChatHTTPHandler, attachmentUC may be nil when
// no object store is configured
func NewChatHTTPHandler(historyUC *HistoryUseCase, attachmentUC *AttachmentUseCase) *ChatHTTPHandler {
	return &ChatHTTPHandler{
		historyUC:    historyUC,
		attachmentUC: attachmentUC,
	}
}

// Messages fetch a room's recent history page
// @Summary Fetch recent messages
// @Description Newest messages of a room in ascending chronological order
// @Tags Chat
// @Produce json
// @Param room query string true "room name"
// @Param limit query int false "page size, capped at 200"
// @Success 200 {object} map[string]interface{} "message page"
// @Failure 400 {object} string "invalid room"
// @Router /api/chat/messages [get]
func (h *ChatHTTPHandler) Messages(c *fiber.Ctx) error {
	room := c.Query("room", "global")
	limit := int64(c.QueryInt("limit", 0))

	page, err := h.historyUC.Recent(c.Context(), room, limit)
	if err != nil {
		if err == ErrRoomRejected {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid room"})
		}
		logger.Log.Errorf("history fetch error:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "fetch failed"})
	}

	return c.JSON(fiber.Map{"data": page})
}

// UploadAttachment store a file and return the attachment reference
// @Summary Upload an attachment
// @Description Stores one file and returns the reference to put on a message
// @Tags Chat
// @Accept mpfd
// @Produce json
// @Param file formData file true "attachment file"
// @Success 200 {object} map[string]interface{} "attachment reference"
// @Failure 400 {object} string "missing or oversized file"
// @Router /api/chat/attachments [post]
func (h *ChatHTTPHandler) UploadAttachment(c *fiber.Ctx) error {
	if h.attachmentUC == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "attachments disabled"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing file"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unreadable file"})
	}
	defer src.Close()

	att, err := h.attachmentUC.Upload(
		c.Context(),
		fileHeader.Filename,
		src,
		fileHeader.Size,
		fileHeader.Header.Get(fiber.HeaderContentType),
	)
	if err != nil {
		if err == ErrAttachmentTooLarge {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		logger.Log.Errorf("attachment upload error:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "upload failed"})
	}

	userID, _ := c.Locals(middlewares.TokenUserID).(string)
	logger.Log.Info("attachment stored",
		zap.String("userID", userID), zap.String("name", att.Name), zap.Int64("size", att.Size))

	return c.JSON(fiber.Map{"data": att})
}
