package gemini

import (
	"os"
	"sync"
)

var (
	defaultOnce   sync.Once
	defaultClient *Client
)

// Default returns the process-wide client, constructed once from the
// environment on first use. When GEMINI_API_KEY is absent the returned client
// is still usable as a value; every call fails with a configuration error
// instead of crashing the process.
func Default() *Client {
	defaultOnce.Do(func() {
		genModel := os.Getenv("GEMINI_GEN_MODEL")
		if genModel == "" {
			genModel = "gemini-2.5-flash"
		}
		embedModel := os.Getenv("GEMINI_EMBED_MODEL")
		if embedModel == "" {
			embedModel = "text-embedding-004"
		}
		defaultClient = New(os.Getenv("GEMINI_API_KEY"), genModel, embedModel)
	})
	return defaultClient
}
