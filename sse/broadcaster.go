package sse

// Broadcaster sends events to the clients matching a glob pattern.
type Broadcaster interface {
	BroadcastToPattern(pattern, event string, data []byte)
}

// RunPattern matches every client following runID.
func RunPattern(runID string) string { return "run:" + runID + ":*" }

// RunClientID returns the client id for one subscriber of runID.
func RunClientID(runID, subscriber string) string { return "run:" + runID + ":" + subscriber }
