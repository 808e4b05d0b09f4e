package usecase

import "fmt"

const (
	// ChatErrorText is committed as the agent reply when a chat turn fails.
	ChatErrorText = "Error: Could not reach agent."

	StatusProcessing = "Processing PDF..."
	StatusFailed     = "Upload failed. Check backend connection."
)

func ingestSuccessStatus(chunks int) string {
	return fmt.Sprintf("Success! Split into %d chunks.", chunks)
}
