package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Core     CoreConfig
	Ai       AIConfig
	Agent    AgentConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
}

type DatabaseConfig struct {
	Connection string
}

type RedisConfig struct {
	URL string
}

// CoreConfig points at the core service that owns users, sessions and
// raw conversation history. The agent only talks to it over HTTP.
type CoreConfig struct {
	BaseURL string
}

type AIConfig struct {
	LLMProvider    string // "ollama" or "gemini"
	LLMModel       string // generation model
	RouterModel    string // cheap model for routing/classification
	FilterModel    string // model for document relevance filtering
	SummaryModel   string // model for memory compaction summaries
	OllamaBaseURL  string
	GeminiAPIKey   string
	EmbeddingModel string
}

// AgentConfig holds the orchestration knobs for one turn.
type AgentConfig struct {
	RetrievalK           int     // documents returned per merged query
	OversampleMultiplier int     // each backend is asked for K*multiplier (capped at 50)
	HybridAlpha          float64 // weight of the vector score in [0,1]
	ContextWindowSize    int     // recent messages sent to the LLM
	SummarizeThreshold   int     // compact when non-summary messages exceed this
	KeepSize             int     // messages kept verbatim after compaction
	GuardTTLSeconds      int     // generation guard expiry
	StopTTLSeconds       int     // stop flag expiry
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "agent.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Core: CoreConfig{
			BaseURL: getEnv("CORE_SERVICE_URL", "http://localhost:8000"),
		},
		Ai: AIConfig{
			LLMProvider:    getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:       getEnv("LLM_MODEL", "llama3"),
			RouterModel:    getEnv("ROUTER_MODEL", ""),
			FilterModel:    getEnv("FILTER_MODEL", ""),
			SummaryModel:   getEnv("SUMMARY_MODEL", ""),
			OllamaBaseURL:  getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			GeminiAPIKey:   getEnv("GOOGLE_GEMINI_API_KEY", ""),
			EmbeddingModel: getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
		},
		Agent: AgentConfig{
			RetrievalK:           getEnvAsInt("RETRIEVAL_K", 4),
			OversampleMultiplier: getEnvAsInt("OVERSAMPLE_MULTIPLIER", 3),
			HybridAlpha:          getEnvAsFloat("HYBRID_ALPHA", 0.5),
			ContextWindowSize:    getEnvAsInt("CONTEXT_WINDOW_SIZE", 5),
			SummarizeThreshold:   getEnvAsInt("SUMMARIZE_THRESHOLD", 20),
			KeepSize:             getEnvAsInt("KEEP_SIZE", 10),
			GuardTTLSeconds:      getEnvAsInt("GUARD_TTL_SECONDS", 600),
			StopTTLSeconds:       getEnvAsInt("STOP_TTL_SECONDS", 300),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
