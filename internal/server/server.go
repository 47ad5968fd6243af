// Package server exposes the administrative HTTP API: invitee management,
// stats, message history, and the manual invitation/reminder triggers.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"

	"event-rsvp-bot/internal/handler"
	"event-rsvp-bot/internal/models"
	"event-rsvp-bot/internal/phone"
	"event-rsvp-bot/internal/reminder"
	"event-rsvp-bot/internal/storage"
)

// session is the slice of the messaging session the API needs.
type session interface {
	IsReady() bool
	QRCode() string
}

type Server struct {
	echo      *echo.Echo
	store     *storage.Store
	engine    *handler.Engine
	reminders *reminder.Service
	session   session
	validate  *validator.Validate
	log       zerolog.Logger
}

func New(store *storage.Store, engine *handler.Engine, reminders *reminder.Service, sess session, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:      e,
		store:     store,
		engine:    engine,
		reminders: reminders,
		session:   sess,
		validate:  validator.New(),
		log:       log.With().Str("component", "server").Logger(),
	}

	e.GET("/health", s.health)
	e.GET("/qr", s.loginQR)

	api := e.Group("/api")
	api.GET("/invitees", s.listInvitees)
	api.POST("/invitees", s.createInvitee)
	api.GET("/invitees/attending", s.listAttending)
	api.GET("/stats", s.stats)
	api.GET("/messages/:phone", s.messageHistory)
	api.POST("/invitations/send", s.sendInvitations)
	api.POST("/reminders/send", s.sendReminders)

	return s
}

func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

// loginQR serves the pending login QR as a PNG, 404 once linked.
func (s *Server) loginQR(c echo.Context) error {
	code := s.session.QRCode()
	if code == "" {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no login QR pending"})
	}

	png, err := qrcode.Encode(code, qrcode.Medium, 400)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to render QR code"})
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

func (s *Server) listInvitees(c echo.Context) error {
	invitees, err := s.store.ListInvitees(c.Request().Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list invitees")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch invitees"})
	}
	return c.JSON(http.StatusOK, invitees)
}

type createInviteeRequest struct {
	Name        string `json:"name" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
	Company     string `json:"company"`
}

func (s *Server) createInvitee(c echo.Context) error {
	var req createInviteeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	addr := phone.Canonicalize(req.PhoneNumber)
	if addr == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "phone number has no digits"})
	}

	ctx := c.Request().Context()
	if _, err := s.store.InviteeByPhone(ctx, addr); err == nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": "invitee already exists"})
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.log.Error().Err(err).Msg("Failed to check invitee")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create invitee"})
	}

	inv, err := s.store.CreateInvitee(ctx, req.Name, addr, req.Email, req.Company)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to create invitee")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create invitee"})
	}
	return c.JSON(http.StatusCreated, inv)
}

func (s *Server) listAttending(c echo.Context) error {
	attending, err := s.store.ListAttending(c.Request().Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list attending invitees")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch attending invitees"})
	}
	return c.JSON(http.StatusOK, attending)
}

func (s *Server) stats(c echo.Context) error {
	ctx := c.Request().Context()
	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to fetch stats")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch statistics"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"invitees":         stats,
		"days_until_event": s.reminders.DaysLeft(),
	})
}

func (s *Server) messageHistory(c echo.Context) error {
	addr := phone.Canonicalize(c.Param("phone"))
	records, err := s.store.MessagesByPhone(c.Request().Context(), addr, 50)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to fetch messages")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch messages"})
	}
	if records == nil {
		records = []models.MessageRecord{}
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) sendInvitations(c echo.Context) error {
	if !s.session.IsReady() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "WhatsApp not connected. Please scan QR code first."})
	}

	sent, total, err := s.engine.BroadcastInvitations(c.Request().Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to send invitations")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to send invitations"})
	}
	return c.JSON(http.StatusOK, map[string]any{"sent": sent, "total": total})
}

func (s *Server) sendReminders(c echo.Context) error {
	summary, err := s.reminders.Run(c.Request().Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to send reminders")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to send reminders"})
	}
	return c.JSON(http.StatusOK, summary)
}
