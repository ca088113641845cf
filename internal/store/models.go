package store

import "time"

const (
	KindChat     = "chat"
	KindDocument = "document"
)

// FileMeta describes an analysed upload. File contents are never persisted.
type FileMeta struct {
	FileName string `json:"fileName" firestore:"fileName"`
	FileType string `json:"fileType" firestore:"fileType"`
	FileSize int64  `json:"fileSize" firestore:"fileSize"`
}

// Interaction is one answered chat message or document analysis.
type Interaction struct {
	ID               string     `json:"id" firestore:"-"`
	Kind             string     `json:"kind" firestore:"kind"`
	UserID           string     `json:"userId" firestore:"userId"`
	Category         string     `json:"category,omitempty" firestore:"category,omitempty"`
	Message          string     `json:"message,omitempty" firestore:"message,omitempty"`
	Query            string     `json:"query,omitempty" firestore:"query,omitempty"`
	Files            []FileMeta `json:"files,omitempty" firestore:"files,omitempty"`
	Response         string     `json:"response" firestore:"response"`
	ProcessingTimeMs int64      `json:"processingTimeMs" firestore:"processingTimeMs"`
	CreatedAt        time.Time  `json:"timestamp" firestore:"timestamp"`
}

// UsageStats is the global usage counter.
type UsageStats struct {
	TotalConsultas uint64    `json:"totalConsultas" firestore:"totalConsultas"`
	LastUpdated    time.Time `json:"lastUpdated" firestore:"lastUpdated"`
}
