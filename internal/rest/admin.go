package rest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"feedbacker/domain"
	"feedbacker/pkg/config"
	"feedbacker/pkg/logger"
	"feedbacker/pkg/utils"
)

const exportPageSize = 500

// AdminFeedbackService contract interface
type AdminFeedbackService interface {
	List(ctx context.Context, filter domain.FeedbackFilter) ([]domain.Feedback, *int, error)
}

// SettingsService contract interface
type SettingsService interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	AlertThreshold(ctx context.Context) float64
}

type AdminHandler struct {
	feedbackService AdminFeedbackService
	settings        SettingsService
	adminCfg        config.AdminConfig
	validator       *validator.Validate
	timeout         time.Duration
}

func NewAdminHandler(feedbackService AdminFeedbackService, settings SettingsService, adminCfg config.AdminConfig) *AdminHandler {
	return &AdminHandler{
		feedbackService: feedbackService,
		settings:        settings,
		adminCfg:        adminCfg,
		validator:       validator.New(),
		timeout:         10 * time.Second,
	}
}

type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

func (h *AdminHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, fres.Response.StatusBadRequest("Invalid request"))
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, fres.Response.StatusBadRequest(err.Error()))
	}

	if h.adminCfg.PasswordHash == "" {
		logger.Error("admin password hash is not configured")
		return c.JSON(http.StatusInternalServerError, fres.Response.StatusInternalServerError("admin login unavailable"))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(h.adminCfg.PasswordHash), []byte(req.Password)); err != nil {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "invalid credentials"})
	}

	token, err := utils.GenerateAdminJWT(h.adminCfg.JWTSecret)
	if err != nil {
		logger.Error("failed to issue admin token", err)
		return c.JSON(http.StatusInternalServerError, fres.Response.StatusInternalServerError("failed to issue token"))
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(echo.Map{"token": token}))
}

func (h *AdminHandler) ListFeedbacks(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	filter := domain.FeedbackFilter{
		ShopID:    c.QueryParam("shop_id"),
		Sentiment: c.QueryParam("sentiment"),
		Limit:     queryInt(c, "limit", 50),
		Offset:    queryInt(c, "offset", 0),
	}

	items, nextOffset, err := h.feedbackService.List(ctx, filter)
	if err != nil {
		logger.Error("failed to list feedbacks", err)
		return c.JSON(http.StatusInternalServerError, fres.Response.StatusInternalServerError(err.Error()))
	}
	if items == nil {
		items = []domain.Feedback{}
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(echo.Map{
		"items":       items,
		"next_offset": nextOffset,
	}))
}

func (h *AdminHandler) GetSettings(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	return c.JSON(http.StatusOK, fres.Response.StatusOK(echo.Map{
		domain.SettingAlertThreshold: h.settings.AlertThreshold(ctx),
	}))
}

type UpdateSettingsRequest struct {
	AlertThreshold any `json:"alert_threshold" validate:"required"`
}

// UpdateSettings accepts the threshold as a number or a string; decimal
// commas are tolerated because the dashboard is used with a Russian
// locale.
func (h *AdminHandler) UpdateSettings(c echo.Context) error {
	var req UpdateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, fres.Response.StatusBadRequest("Invalid request"))
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, fres.Response.StatusBadRequest(err.Error()))
	}

	raw := strings.TrimSpace(fmt.Sprint(req.AlertThreshold))
	normalized := strings.ReplaceAll(raw, ",", ".")
	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil || v < 0 || v > 1 {
		return c.JSON(http.StatusBadRequest, fres.Response.StatusBadRequest("alert_threshold must be a number in [0,1]"))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.settings.Set(ctx, domain.SettingAlertThreshold, normalized); err != nil {
		return c.JSON(http.StatusInternalServerError, fres.Response.StatusInternalServerError(err.Error()))
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(echo.Map{
		domain.SettingAlertThreshold: v,
	}))
}

// Export streams every matching record as an xlsx workbook.
func (h *AdminHandler) Export(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), time.Minute)
	defer cancel()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	header := []any{"id", "shop_id", "device_id", "timestamp", "sentiment",
		"emotion_score", "tags", "summary", "transcript"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return c.JSON(http.StatusInternalServerError, fres.Response.StatusInternalServerError(err.Error()))
	}

	filter := domain.FeedbackFilter{
		ShopID:    c.QueryParam("shop_id"),
		Sentiment: c.QueryParam("sentiment"),
		Limit:     exportPageSize,
	}

	row := 2
	for {
		items, nextOffset, err := h.feedbackService.List(ctx, filter)
		if err != nil {
			logger.Error("export query failed", err)
			return c.JSON(http.StatusInternalServerError, fres.Response.StatusInternalServerError(err.Error()))
		}

		for _, fb := range items {
			cells := []any{
				fb.ID,
				fb.ShopID,
				fb.DeviceID,
				fb.Timestamp.Format(time.RFC3339),
				fb.Sentiment,
				fb.EmotionScore,
				strings.Join(fb.Tags, ", "),
				fb.Summary,
				fb.Transcript,
			}
			if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &cells); err != nil {
				return c.JSON(http.StatusInternalServerError, fres.Response.StatusInternalServerError(err.Error()))
			}
			row++
		}

		if nextOffset == nil {
			break
		}
		filter.Offset = *nextOffset
	}

	c.Response().Header().Set(echo.HeaderContentType,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="feedbacks.xlsx"`)
	c.Response().WriteHeader(http.StatusOK)

	if _, err := f.WriteTo(c.Response()); err != nil {
		logger.Error("export write failed", err)
		return err
	}

	return nil
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}

	return n
}
