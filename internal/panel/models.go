package panel

import (
	"encoding/json"
	"strconv"
)

// ServerListItem is one entry of the application API server list. The
// original JSON is kept so responses can pass it through unchanged.
type ServerListItem struct {
	Object     string
	Attributes ServerAttributes
	raw        json.RawMessage
}

type ServerAttributes struct {
	ID          int    `json:"id"`
	ExternalID  string `json:"external_id"`
	UUID        string `json:"uuid"`
	Identifier  string `json:"identifier"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Suspended   bool   `json:"suspended"`
	User        int    `json:"user"`
	Node        int    `json:"node"`
	Limits      Limits `json:"limits"`
}

type Limits struct {
	Memory int `json:"memory"`
	Swap   int `json:"swap"`
	Disk   int `json:"disk"`
	IO     int `json:"io"`
	CPU    int `json:"cpu"`
}

func (s *ServerListItem) UnmarshalJSON(data []byte) error {
	var wire struct {
		Object     string           `json:"object"`
		Attributes ServerAttributes `json:"attributes"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	s.Object = wire.Object
	s.Attributes = wire.Attributes
	s.raw = append(s.raw[:0], data...)
	return nil
}

func (s ServerListItem) MarshalJSON() ([]byte, error) {
	if len(s.raw) > 0 {
		return s.raw, nil
	}
	return json.Marshal(struct {
		Object     string           `json:"object"`
		Attributes ServerAttributes `json:"attributes"`
	}{s.Object, s.Attributes})
}

// Matches reports whether id names this server by short identifier, uuid or numeric id.
func (s ServerListItem) Matches(id string) bool {
	if id == "" {
		return false
	}
	a := s.Attributes
	return id == a.Identifier || id == a.UUID || id == strconv.Itoa(a.ID)
}

// OwnedBy reports whether the panel user owns this server.
func (s ServerListItem) OwnedBy(userID int) bool {
	return s.Attributes.User == userID
}

type Resources struct {
	CurrentState string        `json:"current_state"`
	IsSuspended  bool          `json:"is_suspended"`
	Resources    ResourceUsage `json:"resources"`
}

type ResourceUsage struct {
	MemoryBytes    int64   `json:"memory_bytes"`
	CPUAbsolute    float64 `json:"cpu_absolute"`
	DiskBytes      int64   `json:"disk_bytes"`
	NetworkRxBytes int64   `json:"network_rx_bytes"`
	NetworkTxBytes int64   `json:"network_tx_bytes"`
	Uptime         int64   `json:"uptime"`
}

type Backup struct {
	UUID         string   `json:"uuid"`
	Name         string   `json:"name"`
	Bytes        int64    `json:"bytes"`
	CreatedAt    string   `json:"created_at"`
	CompletedAt  *string  `json:"completed_at"`
	IsSuccessful bool     `json:"is_successful"`
	IsLocked     bool     `json:"is_locked"`
	SHA256Hash   *string  `json:"sha256_hash"`
	IgnoredFiles []string `json:"ignored_files"`
}

type listEnvelope struct {
	Object string           `json:"object"`
	Data   []ServerListItem `json:"data"`
	Meta   struct {
		Pagination struct {
			Total       int `json:"total"`
			Count       int `json:"count"`
			PerPage     int `json:"per_page"`
			CurrentPage int `json:"current_page"`
			TotalPages  int `json:"total_pages"`
		} `json:"pagination"`
	} `json:"meta"`
}

type resourcesEnvelope struct {
	Object     string    `json:"object"`
	Attributes Resources `json:"attributes"`
}

type backupsEnvelope struct {
	Object string `json:"object"`
	Data   []struct {
		Object     string `json:"object"`
		Attributes Backup `json:"attributes"`
	} `json:"data"`
}
