package models

// Config represents the service configuration
type Config struct {
	// Server config
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// OCR config
	OCR OCRConfig `yaml:"ocr"`

	// AI config
	AI AIConfig `yaml:"ai"`

	// Extraction config
	Extraction ExtractionConfig `yaml:"extraction"`

	// Sequence number generation
	Sequence SequenceConfig `yaml:"sequence"`

	// Issuer/recipient identity overrides (defaults apply when empty)
	Emisor   *Emisor   `yaml:"emisor,omitempty"`
	Receptor *Receptor `yaml:"receptor,omitempty"`
}

// OCRConfig represents OCR-specific configuration
type OCRConfig struct {
	Engine   string `yaml:"engine"`   // "tesseract"
	Language string `yaml:"language"` // OCR language (default: "spa")
}

// ExtractionConfig selects the extraction variant
type ExtractionConfig struct {
	// Mode: "rules" (pattern matching), "ai" (generative model),
	// "fallback" (ai first, rules on backend failure)
	Mode string `yaml:"mode"`
}

// SequenceConfig controls generated sequence numbers when no pattern matches
type SequenceConfig struct {
	// Strategy: "timestamp" (last 6 digits of epoch millis) or
	// "daily" (YYYYMMDD + 3-digit counter)
	Strategy string `yaml:"strategy"`
	// Counter: "random" (no uniqueness guarantee) or
	// "atomic" (per-day counter persisted in the database)
	Counter string `yaml:"counter"`
}

// AIConfig represents AI provider configuration
type AIConfig struct {
	// OpenAI
	OpenAI OpenAIConfig `yaml:"openai"`

	// Gemini
	Gemini GeminiConfig `yaml:"gemini"`

	// Ollama (local)
	Ollama OllamaConfig `yaml:"ollama"`

	// Default provider
	DefaultProvider string `yaml:"default_provider"` // "openai", "gemini", "ollama"
}

// OpenAIConfig for OpenAI/Azure OpenAI
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"` // For custom endpoints
	Model   string `yaml:"model"`              // Default: "gpt-4"
}

// GeminiConfig for Google Gemini
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // Default: "gemini-pro"
}

// OllamaConfig for local Ollama
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"` // Default: "http://localhost:11434"
	Model   string `yaml:"model"`    // e.g., "mistral", "llama2"
}
