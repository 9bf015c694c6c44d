// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes the forum
// endpoints and credentials, sweep policy (room allow-list, ordering,
// recency window, delays), storage paths, and reply-generation settings.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// ForumConfig defines the remote forum service endpoints and account.
type ForumConfig struct {
	QueryURL      string // FORUM_QUERY_URL, read-side service base
	CommandURL    string // FORUM_COMMAND_URL, write-side service base
	Origin        string // FORUM_ORIGIN, browser origin sent on every request
	Username      string // FORUM_USERNAME
	Password      string // FORUM_PASSWORD
	ProbePageGUID string // SESSION_PROBE_PAGE_GUID, page used by the session validity probe
}

// AIConfig defines the reply-generation collaborator settings.
type AIConfig struct {
	Provider string // AI_PROVIDER: perplexity|gemini
	APIKey   string // AI_API_KEY
	Model    string // AI_MODEL (provider default when empty)
	BaseURL  string // AI_BASE_URL, override for the perplexity endpoint
}

// Config holds all configuration values for the application.
type Config struct {
	Forum ForumConfig
	AI    AIConfig

	// Sweep policy
	PageName          string   // PAGE_NAME, community display name to resolve
	RoomTitles        []string // ROOM_TITLES csv allow-list
	ConversationLimit int      // CONVERSATION_LIMIT, newest posts fetched per room
	WindowHours       int      // REPLY_WINDOW_HOURS, 0 disables the recency filter
	DelayMaxSeconds   int      // REPLY_DELAY_MAX_SECONDS, upper bound of the pre-submit delay
	RoomOrder         string   // ROOM_ORDER: title|pinned
	PinnedRoomTitle   string   // PINNED_ROOM_TITLE, virtual room + pinned ordering anchor

	// Storage
	StoreBackend    string // STORE_BACKEND: sqlite|json
	DBPath          string // SQLite path
	RepliedJSONPath string // flat-file store path
	CredentialsPath string // key/value credential file path

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev
	LogFile   string // optional rotated log file
}

// delayFloorSeconds is the minimum pre-submit delay bound; smaller
// configured maxima are raised to it.
const delayFloorSeconds = 5

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Forum: ForumConfig{
			QueryURL:      strings.TrimRight(getenv("FORUM_QUERY_URL", ""), "/"),
			CommandURL:    strings.TrimRight(getenv("FORUM_COMMAND_URL", ""), "/"),
			Origin:        strings.TrimRight(getenv("FORUM_ORIGIN", ""), "/"),
			Username:      getenv("FORUM_USERNAME", ""),
			Password:      getenv("FORUM_PASSWORD", ""),
			ProbePageGUID: getenv("SESSION_PROBE_PAGE_GUID", ""),
		},
		AI: AIConfig{
			Provider: strings.ToLower(getenv("AI_PROVIDER", "perplexity")),
			APIKey:   getenv("AI_API_KEY", ""),
			Model:    getenv("AI_MODEL", ""),
			BaseURL:  getenv("AI_BASE_URL", ""),
		},

		PageName:          getenv("PAGE_NAME", ""),
		RoomTitles:        splitCSV(getenv("ROOM_TITLES", "Recent Subjects")),
		ConversationLimit: getint("CONVERSATION_LIMIT", 5),
		WindowHours:       getint("REPLY_WINDOW_HOURS", 0),
		DelayMaxSeconds:   getint("REPLY_DELAY_MAX_SECONDS", 300),
		RoomOrder:         strings.ToLower(getenv("ROOM_ORDER", "title")),
		PinnedRoomTitle:   getenv("PINNED_ROOM_TITLE", "Recent Subjects"),

		StoreBackend:    strings.ToLower(getenv("STORE_BACKEND", "sqlite")),
		DBPath:          getenv("DB_PATH", "replied_posts.db"),
		RepliedJSONPath: getenv("REPLIED_JSON_PATH", "replied_posts.json"),
		CredentialsPath: getenv("CREDENTIALS_PATH", "config.json"),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),
		LogFile:   getenv("LOG_FILE", ""),
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	if cfg.WindowHours < 0 {
		// An invalid window disables the filter rather than failing the run.
		cfg.WindowHours = 0
	}
	if cfg.DelayMaxSeconds < delayFloorSeconds {
		cfg.DelayMaxSeconds = delayFloorSeconds
	}
	if len(cfg.RoomTitles) == 0 {
		cfg.RoomTitles = []string{"Recent Subjects"}
	}
	switch cfg.RoomOrder {
	case "title", "pinned":
	default:
		cfg.RoomOrder = "title"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if cfg.Forum.QueryURL == "" || cfg.Forum.CommandURL == "" {
		return cfg, errors.New("FORUM_QUERY_URL and FORUM_COMMAND_URL must not be empty")
	}
	if cfg.Forum.Username == "" || cfg.Forum.Password == "" {
		return cfg, errors.New("FORUM_USERNAME and FORUM_PASSWORD must not be empty")
	}
	if cfg.PageName == "" {
		return cfg, errors.New("PAGE_NAME must not be empty")
	}
	if cfg.ConversationLimit < 1 {
		return cfg, errors.New("CONVERSATION_LIMIT must be >= 1")
	}
	switch cfg.StoreBackend {
	case "sqlite", "json":
	default:
		return cfg, errors.New("STORE_BACKEND must be sqlite or json")
	}
	switch cfg.AI.Provider {
	case "perplexity", "gemini":
	default:
		return cfg, errors.New("AI_PROVIDER must be perplexity or gemini")
	}
	if cfg.AI.APIKey == "" {
		return cfg, errors.New("AI_API_KEY must not be empty")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.CredentialsPath) == "" {
		return cfg, errors.New("CREDENTIALS_PATH must not be empty")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
