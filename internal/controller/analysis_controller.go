package controller

import (
	"io"
	"strconv"

	"ai-videochat-be/internal/pkg/serverutils"
	"ai-videochat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAnalysisController interface {
	RegisterRoutes(r fiber.Router)
	AnalyzeVideo(ctx *fiber.Ctx) error
	GetAnalysisHistory(ctx *fiber.Ctx) error
}

type analysisController struct {
	service service.IAnalysisService
}

func NewAnalysisController(service service.IAnalysisService) IAnalysisController {
	return &analysisController{service: service}
}

func (c *analysisController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/analysis/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("/analyze", c.AnalyzeVideo)
	h.Get("/history", c.GetAnalysisHistory)
}

func (c *analysisController) AnalyzeVideo(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Invalid user identity"))
	}

	fileHeader, err := ctx.FormFile("video")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Video file is required"))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Failed to open uploaded file"))
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Failed to read uploaded file"))
	}

	res, err := c.service.AnalyzeVideo(
		ctx.Context(),
		userId,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		data,
		nil,
	)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Video analyzed", res))
}

func (c *analysisController) GetAnalysisHistory(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Invalid user identity"))
	}

	limit, _ := strconv.Atoi(ctx.Query("limit"))

	res, err := c.service.GetAnalysisHistory(ctx.Context(), userId, limit)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Analysis history fetched", res))
}
