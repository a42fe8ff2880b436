package models

// AuditLog records write operations against plan-scoped resources.
// Actor is the explicit acting identity threaded through every write.
type AuditLog struct {
	Base
	Actor        string `gorm:"type:uuid;not null;index" json:"actor"`
	Action       string `gorm:"not null" json:"action"`
	ResourceType string `gorm:"not null" json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	IPAddress    string `json:"ip_address"`
	Changes      string `json:"changes,omitempty"`
}
