package filter

import (
	"time"

	"github.com/spf13/viper"
)

// Valves are the operator-level settings, built once at load and immutable
// within a request.
type Valves struct {
	QdrantHost     string
	QdrantPort     int
	Collection     string
	Embedder       string
	EmbeddingModel string
	OllamaHost     string
	TopK           int
	Priority       int
	Timeout        time.Duration
}

// DefaultValves returns the documented defaults
func DefaultValves() Valves {
	return Valves{
		QdrantHost:     "localhost",
		QdrantPort:     6333,
		Collection:     "owui_memories",
		Embedder:       "ollama",
		EmbeddingModel: "nomic-embed-text",
		OllamaHost:     "http://localhost:11434",
		TopK:           3,
		Priority:       0,
		Timeout:        10 * time.Second,
	}
}

// Clamp replaces out-of-range values with their defaults. Invalid values
// are rejected at construction, not at use.
func (v Valves) Clamp() Valves {
	def := DefaultValves()

	if v.TopK < 1 {
		v.TopK = def.TopK
	}
	if v.Timeout <= 0 {
		v.Timeout = def.Timeout
	}
	if v.QdrantHost == "" {
		v.QdrantHost = def.QdrantHost
	}
	if v.Collection == "" {
		v.Collection = def.Collection
	}
	if v.Embedder == "" {
		v.Embedder = def.Embedder
	}

	return v
}

// ValvesFromConfig reads the operator valves from the loaded viper config
func ValvesFromConfig() Valves {
	return Valves{
		QdrantHost:     viper.GetString("memory.qdrant.host"),
		QdrantPort:     viper.GetInt("memory.qdrant.port"),
		Collection:     viper.GetString("memory.qdrant.collection"),
		Embedder:       viper.GetString("memory.embedder"),
		EmbeddingModel: viper.GetString("memory.model"),
		OllamaHost:     viper.GetString("memory.ollama.host"),
		TopK:           viper.GetInt("memory.top_k"),
		Priority:       viper.GetInt("filter.priority"),
		Timeout:        viper.GetDuration("memory.timeout"),
	}.Clamp()
}

// UserValves are the per-user settings, reconstructed on every request
// from caller-supplied data.
type UserValves struct {
	Enabled bool   `json:"memory_enabled"`
	Tag     string `json:"tag"`
}

// DefaultUserValves returns the defaults applied when the host sends nothing
func DefaultUserValves() UserValves {
	return UserValves{
		Enabled: true,
		Tag:     "",
	}
}

// UserValvesFromMap resolves a loose key-value map into typed settings.
// Unknown keys are ignored; missing keys keep their defaults.
func UserValvesFromMap(m map[string]any) UserValves {
	valves := DefaultUserValves()

	if m == nil {
		return valves
	}

	if enabled, ok := m["memory_enabled"].(bool); ok {
		valves.Enabled = enabled
	}

	if tag, ok := m["tag"].(string); ok {
		valves.Tag = tag
	}

	return valves
}
