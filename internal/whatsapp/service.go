// Package whatsapp adapts whatsmeow to the chat transport capability the
// rest of the bot is written against.
package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"event-rsvp-bot/internal/delivery"
	"event-rsvp-bot/internal/phone"
)

// InboundHandler receives every inbound text message as (address, body).
type InboundHandler func(ctx context.Context, address, body string) error

type Config struct {
	DataDir string
}

type Service struct {
	client  *whatsmeow.Client
	cfg     *Config
	log     zerolog.Logger
	handler InboundHandler

	mu     sync.RWMutex
	ready  bool
	qrCode string
}

// NewService creates a new WhatsApp service backed by a whatsmeow session
// store in cfg.DataDir.
func NewService(cfg *Config, log zerolog.Logger) (*Service, error) {
	ctx := context.Background()
	logger := log.With().Str("component", "whatsapp").Logger()

	// Use nil logger - sqlstore will use a no-op logger by default
	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s/whatsmeow.db?_foreign_keys=on", cfg.DataDir), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, nil)

	service := &Service{
		client: client,
		cfg:    cfg,
		log:    logger,
	}

	client.AddEventHandler(func(evt interface{}) {
		service.eventHandler(evt)
	})

	return service, nil
}

// SetInboundHandler sets the callback for incoming messages.
func (s *Service) SetInboundHandler(handler InboundHandler) {
	s.handler = handler
}

// Connect connects to WhatsApp, driving the QR login flow when no session
// is stored yet.
func (s *Service) Connect() error {
	if s.client.Store.ID == nil {
		qrChan, _ := s.client.GetQRChannel(context.Background())
		if err := s.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		for evt := range qrChan {
			if evt.Event == "code" {
				s.setQRCode(evt.Code)
				q, err := qrcode.New(evt.Code, qrcode.Medium)
				if err != nil {
					fmt.Printf("QR Code: %s\n", evt.Code)
					fmt.Println("Please scan this QR code with WhatsApp to connect.")
				} else {
					fmt.Println("\n" + q.ToSmallString(false))
					fmt.Println("📱 Please scan the QR code above with WhatsApp:")
					fmt.Println("   1. Open WhatsApp on your phone")
					fmt.Println("   2. Go to Settings > Linked Devices")
					fmt.Println("   3. Tap 'Link a Device'")
					fmt.Println("   4. Scan the QR code shown above")
					fmt.Println()
				}
			} else {
				s.setQRCode("")
				s.log.Info().Str("event", evt.Event).Msg("Login event")
			}
		}
	} else {
		if err := s.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
	}
	return nil
}

// Disconnect disconnects from WhatsApp
func (s *Service) Disconnect() {
	s.client.Disconnect()
}

// IsReady reports whether the session is connected and able to send.
func (s *Service) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// QRCode returns the current login QR payload, or "" when none is pending.
func (s *Service) QRCode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.qrCode
}

func (s *Service) setQRCode(code string) {
	s.mu.Lock()
	s.qrCode = code
	s.mu.Unlock()
}

func (s *Service) setReady(ready bool) {
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()
}

// SendText sends a plain text message to a canonicalized address.
func (s *Service) SendText(ctx context.Context, address, body string) error {
	jid := s.jidFor(address)

	s.log.Debug().Str("jid", jid.String()).Msg("Sending text message")

	_, err := s.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendMedia sends an image read from assetPath with body as its caption.
func (s *Service) SendMedia(ctx context.Context, address, body, assetPath string) error {
	data, err := os.ReadFile(assetPath)
	if err != nil {
		return fmt.Errorf("failed to read media asset: %w", err)
	}

	uploaded, err := s.client.Upload(ctx, data, whatsmeow.MediaImage)
	if err != nil {
		return fmt.Errorf("failed to upload media: %w", err)
	}

	jid := s.jidFor(address)
	s.log.Debug().Str("jid", jid.String()).Str("asset", assetPath).Msg("Sending media message")

	_, err = s.client.SendMessage(ctx, jid, &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{
			Caption:       proto.String(body),
			Mimetype:      proto.String(http.DetectContentType(data)),
			URL:           &uploaded.URL,
			DirectPath:    &uploaded.DirectPath,
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    &uploaded.FileLength,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send media message: %w", err)
	}
	return nil
}

// SendOptions reports ErrOptionsNotSupported: multi-device WhatsApp rejects
// the legacy interactive button payloads, so the delivery queue's
// numbered-list fallback is the production path.
func (s *Service) SendOptions(ctx context.Context, address, body string, options []string) error {
	return delivery.ErrOptionsNotSupported
}

// jidFor builds the user JID for a canonicalized "+<digits>" address.
func (s *Service) jidFor(address string) types.JID {
	digits := strings.TrimPrefix(phone.Canonicalize(address), "+")
	return types.NewJID(digits, types.DefaultUserServer)
}

// eventHandler handles incoming WhatsApp events
func (s *Service) eventHandler(evt interface{}) {
	if evt == nil {
		return
	}
	switch evt := evt.(type) {
	case *events.Message:
		s.handleMessage(evt)
	case *events.Connected:
		s.setReady(true)
		s.setQRCode("")
		s.log.Info().Msg("Connected to WhatsApp")
	case *events.Disconnected:
		s.setReady(false)
		s.log.Info().Msg("Disconnected from WhatsApp")
	case *events.LoggedOut:
		s.setReady(false)
		s.log.Info().Msg("Logged out from WhatsApp")
	}
}

// handleMessage forwards inbound text to the registered handler.
func (s *Service) handleMessage(msg *events.Message) {
	if msg.Info.IsFromMe {
		return
	}

	text := msg.Message.GetConversation()
	if text == "" {
		text = msg.Message.GetExtendedTextMessage().GetText()
	}
	if text == "" {
		return
	}

	address := "+" + msg.Info.Sender.User

	if s.handler == nil {
		s.log.Info().Str("sender", address).Str("message", text).Msg("Received message")
		return
	}

	if err := s.handler(context.Background(), address, text); err != nil {
		s.log.Error().Err(err).Msg("Error handling message")
	}
}
