package analytics

import "time"

type EventType string

const (
	EventCacheHit    EventType = "cache_hit"
	EventComputed    EventType = "computed"
	EventFetchError  EventType = "fetch_error"
	EventViewSaved   EventType = "view_saved"
	EventViewDeleted EventType = "view_deleted"
)

// StructureEvent records one request for a structure loader artifact.
type StructureEvent struct {
	Type          EventType `json:"type"`
	StructureID   string    `json:"structure_id"`
	AtomCount     int       `json:"atom_count"`
	BondCount     int       `json:"bond_count"`
	ArtifactBytes int       `json:"artifact_bytes"`
	ChunkCount    int       `json:"chunk_count"`
	LatencyMs     int64     `json:"latency_ms"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id"`
}

// ViewEvent records a save or delete of an annotated view.
type ViewEvent struct {
	Type      EventType `json:"type"`
	PDBID     string    `json:"pdb_id"`
	ViewID    string    `json:"view_id"`
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}
