package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	DataDir         string
	DatabasePath    string
	ServerPort      string
	SendDelay       time.Duration
	ReminderHour    int
	InvitationImage string
	Event           EventConfig
}

// EventConfig describes the single scheduled event the bot manages.
type EventConfig struct {
	Name         string
	Date         time.Time
	DateDisplay  string
	Day          string
	Time         string
	Location     string
	ContactEmail string
	ContactPhone string
}

// Load loads configuration from a .env file (if present) and environment
// variables, falling back to defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "data")

	eventDate, err := time.Parse("2006-01-02", getEnv("EVENT_DATE", "2026-12-12"))
	if err != nil {
		return nil, fmt.Errorf("invalid EVENT_DATE: %w", err)
	}

	return &Config{
		DataDir:         dataDir,
		DatabasePath:    getEnv("DATABASE_PATH", dataDir+"/rsvp.db"),
		ServerPort:      getEnv("SERVER_PORT", "3070"),
		SendDelay:       getEnvDuration("SEND_DELAY", 3*time.Second),
		ReminderHour:    getEnvInt("REMINDER_HOUR", 9),
		InvitationImage: getEnv("INVITATION_IMAGE", ""),
		Event: EventConfig{
			Name:         getEnv("EVENT_NAME", "Gala Dinner"),
			Date:         eventDate,
			DateDisplay:  getEnv("EVENT_DATE_DISPLAY", eventDate.Format("January 2, 2006")),
			Day:          getEnv("EVENT_DAY", eventDate.Format("Monday")),
			Time:         getEnv("EVENT_TIME", "7:00 PM"),
			Location:     getEnv("EVENT_LOCATION", "Venue TBD"),
			ContactEmail: getEnv("EVENT_CONTACT_EMAIL", ""),
			ContactPhone: getEnv("EVENT_CONTACT_PHONE", ""),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
