package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	TelegramToken       string
	DatabasePath        string
	Timezone            *time.Location
	TickInterval        time.Duration
	DefaultRemindBefore int
	CalDAVURL           string
	CalDAVUsername      string
	CalDAVPassword      string
	CalDAVCalendarID    string
}

func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/eventbot.db"
	}

	tzName := os.Getenv("TIMEZONE")
	if tzName == "" {
		tzName = "Europe/Kyiv"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	tick := 10 * time.Second
	if t := os.Getenv("TICK_INTERVAL"); t != "" {
		tick, err = time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("invalid TICK_INTERVAL: %w", err)
		}
		if tick < time.Second {
			return nil, fmt.Errorf("TICK_INTERVAL must be at least 1s")
		}
	}

	remindBefore := 10
	if r := os.Getenv("DEFAULT_REMIND_BEFORE"); r != "" {
		remindBefore, err = strconv.Atoi(r)
		if err != nil || remindBefore < 0 {
			return nil, fmt.Errorf("DEFAULT_REMIND_BEFORE must be a non-negative number")
		}
	}

	return &Config{
		TelegramToken:       token,
		DatabasePath:        dbPath,
		Timezone:            tz,
		TickInterval:        tick,
		DefaultRemindBefore: remindBefore,
		CalDAVURL:           os.Getenv("CALDAV_URL"),
		CalDAVUsername:      os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword:      os.Getenv("CALDAV_PASSWORD"),
		CalDAVCalendarID:    os.Getenv("CALDAV_CALENDAR_ID"),
	}, nil
}
