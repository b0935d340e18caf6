package config

// Storage driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Vector store providers.
const (
	VectorProviderLocal    = "local"
	VectorProviderPinecone = "pinecone"
)

// Embedding providers.
const (
	EmbeddingProviderHF   = "hf"
	EmbeddingProviderMock = "mock"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverSQLite
	}
	if cfg.Storage.DSN == "" && cfg.Storage.Driver == DriverSQLite {
		cfg.Storage.DSN = "./data/mcqgen.db"
	}
	if cfg.Vector.Provider == "" {
		cfg.Vector.Provider = VectorProviderLocal
	}
	if cfg.Vector.IndexName == "" {
		cfg.Vector.IndexName = "mcqgen-chunks"
	}
	if cfg.Vector.IndexPath == "" && cfg.Vector.Provider == VectorProviderLocal {
		cfg.Vector.IndexPath = "./data/vectors.idx"
	}
	if cfg.Vector.UpsertBatch == 0 {
		cfg.Vector.UpsertBatch = 128
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = EmbeddingProviderHF
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 8
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 60
	}
	if cfg.Embedding.MaxRetries == 0 {
		cfg.Embedding.MaxRetries = 3
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 400
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 50
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 8
	}
}
