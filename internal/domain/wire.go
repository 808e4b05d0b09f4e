package domain

// ChatRequest is the body of a chat-turn call to the agent service.
type ChatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
}

// ChatReply is the success body of a chat-turn call.
type ChatReply struct {
	Response string `json:"response"`
	ThreadID string `json:"thread_id"`
}

// IngestResult is the success body of a document upload.
type IngestResult struct {
	Status        string `json:"status"`
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunks_created"`
}

// Health is the body returned by the service root endpoint.
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
