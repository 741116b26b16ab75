package entity

// User is a persisted account row. The password credential is stored and
// compared in plaintext to preserve the behavior of the system this
// replaces; the column name still reads password_hash.
type User struct {
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	PasswordHash string  `json:"-"`
	CreatedAt    string  `json:"created_at"`
	LastLoginAt  *string `json:"last_login_at"`
	IsActive     bool    `json:"is_active"`
	IsAdmin      bool    `json:"is_admin"`
}

// ActivityEntry is one append-only audit row. Module, action and subject
// are stored structured at write time so readers never have to parse
// free-text descriptions.
type ActivityEntry struct {
	ID        int64  `json:"id"`
	User      string `json:"user"`
	Module    string `json:"module"`
	Action    string `json:"action"`
	Subject   string `json:"subject"`
	Timestamp int64  `json:"timestamp"`
}

// Activity modules.
const (
	ModuleSystem     = "system"
	ModuleInvoice    = "invoice"
	ModuleQA         = "qa"
	ModuleDocumentQA = "document_qa"
	ModuleAdmin      = "admin"
	ModuleSettings   = "settings"
)
