package controller

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gemini-rag-be/internal/constant"
	"gemini-rag-be/internal/dto"
	"gemini-rag-be/internal/pkg/logger"
	"gemini-rag-be/internal/pkg/serverutils"
	"gemini-rag-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Index(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	DeleteAll(ctx *fiber.Ctx) error
	StoreInfo(ctx *fiber.Ctx) error
}

type documentController struct {
	service   service.IDocumentService
	uploadDir string
	guard     fiber.Handler
	logger    logger.ILogger
}

// NewDocumentController wires the document routes. guard protects the
// destructive routes.
func NewDocumentController(service service.IDocumentService, uploadDir string, guard fiber.Handler, log logger.ILogger) IDocumentController {
	return &documentController{
		service:   service,
		uploadDir: uploadDir,
		guard:     guard,
		logger:    log,
	}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	r.Post("/index", c.Index)
	r.Get("/store", c.StoreInfo)

	r.Get("/documents", c.List)
	r.Delete("/documents", c.guard, c.DeleteAll)
	// wildcard so fully qualified remote names with slashes reach the handler
	r.Delete("/documents/*", c.guard, c.Delete)
}

func (c *documentController) Index(ctx *fiber.Ctx) error {
	file, err := ctx.FormFile("file")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "No file uploaded"))
	}

	if err := os.MkdirAll(c.uploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(c.uploadDir, fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(file.Filename)))
	if err := ctx.SaveFile(file, path); err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.logger.Warn(constant.LogModuleHTTP, "Failed to remove upload", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
		}
	}()

	req := dto.IndexDocumentRequest{
		FilePath:     path,
		OriginalName: file.Filename,
		MimeType:     file.Header.Get("Content-Type"),
		SizeBytes:    file.Size,
		Metadata:     ctx.FormValue("metadata"),
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Index(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("File uploaded and indexed successfully", res))
}

func (c *documentController) List(ctx *fiber.Ctx) error {
	res, err := c.service.List(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get documents", res))
}

func (c *documentController) Delete(ctx *fiber.Ctx) error {
	id, err := url.PathUnescape(ctx.Params("*"))
	if err != nil || id == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Document id is required"))
	}

	res, err := c.service.Delete(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Document deleted", res))
}

func (c *documentController) DeleteAll(ctx *fiber.Ctx) error {
	res, err := c.service.DeleteAll(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("All documents deleted", res))
}

func (c *documentController) StoreInfo(ctx *fiber.Ctx) error {
	res, err := c.service.StoreInfo(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get store info", res))
}
