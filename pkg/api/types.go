package api

import (
	"encoding/json"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port                int
	Bind                string
	APIKey              string // Client API key for collection operations
	SystemKey           string // System API key for administrative operations
	SystemEncryptionKey string // Secret sealing system data; empty stores it in the clear
}

// EntryResponse is one entry of a collection
type EntryResponse struct {
	Key string `json:"key"`
	// Path lists the partitions below the requested collection that hold the
	// entry, followed by its key within the deepest one.
	Path  []string        `json:"path"`
	Value json.RawMessage `json:"value"`
}

// ListResponse is the result of scanning a collection
type ListResponse struct {
	Collection string          `json:"collection"`
	Partitions []string        `json:"partitions,omitempty"`
	Reverse    bool            `json:"reverse"`
	Count      int             `json:"count"`
	Entries    []EntryResponse `json:"entries"`
}

// CreateAPIKeyRequest is the body of an API key creation request. ID and Key
// are generated when empty.
type CreateAPIKeyRequest struct {
	ID          string `json:"id,omitempty"`
	Key         string `json:"key,omitempty"`
	Description string `json:"description,omitempty"`
	TTLSeconds  int64  `json:"ttl_seconds,omitempty"`
}
