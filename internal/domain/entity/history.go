package entity

// InvoiceHistoryEntry records one successfully posted invoice. Entries are
// append-only and only ever removed in bulk. JSON tags match the persisted
// blob written by the browser client this service replaces.
type InvoiceHistoryEntry struct {
	Reference     string  `json:"reference"`
	VendorName    string  `json:"vendor_name"`
	ProcessedDate string  `json:"processedDate"`
	TotalAmount   float64 `json:"totalAmount"`
	Currency      string  `json:"currency"`
	IsPosted      bool    `json:"isPosted"`
}

// NotificationSettings are per-user notification toggles.
type NotificationSettings struct {
	Email bool `json:"email"`
	Toast bool `json:"toast"`
}

// AccessibilitySettings are per-user accessibility toggles.
type AccessibilitySettings struct {
	ReducedMotion bool `json:"reducedMotion"`
	HighContrast  bool `json:"highContrast"`
}

// UserSettings is the persisted preference blob. Last write wins; nothing
// is validated server-side.
type UserSettings struct {
	Theme         string                `json:"theme"`
	Language      string                `json:"language"`
	Timezone      string                `json:"timezone"`
	DateFormat    string                `json:"dateFormat"`
	Notifications NotificationSettings  `json:"notifications"`
	Accessibility AccessibilitySettings `json:"accessibility"`
}

// DefaultSettings returns the settings applied before a user saves any.
func DefaultSettings() UserSettings {
	return UserSettings{
		Theme:      "sky",
		Language:   "en",
		Timezone:   "Asia/Riyadh",
		DateFormat: "DD/MM/YYYY",
		Notifications: NotificationSettings{
			Email: true,
			Toast: true,
		},
	}
}
