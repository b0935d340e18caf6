package vector

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/gk6450/mcq-gen/internal/config"
)

// NewStore creates the vector store named by cfg.Provider: "local" (default)
// or "pinecone". The Pinecone API key comes from PINECONE_API_KEY.
func NewStore(cfg *config.VectorConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Provider {
	case config.VectorProviderLocal, "":
		return NewLocalStore(cfg.IndexPath)
	case config.VectorProviderPinecone:
		return NewPineconeStore(os.Getenv("PINECONE_API_KEY"), cfg.IndexName, logger)
	default:
		return nil, fmt.Errorf("unknown vector provider: %s (supported: local, pinecone)", cfg.Provider)
	}
}
