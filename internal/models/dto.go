package models

// ==================== Dashboard DTOs ====================

// ServerListResponse is the dashboard server list.
type ServerListResponse struct {
	Servers []Server `json:"servers"`
	Total   int      `json:"total"`
}

// StatusMapResponse maps subscription ids to their aggregated status.
type StatusMapResponse struct {
	Statuses map[string]ServerStatus `json:"statuses"`
}

// EditServerRequest renames a server.
type EditServerRequest struct {
	Name string `json:"name" binding:"required,min=3,max=50"`
}

// ChangeRegionRequest moves a server to another region.
type ChangeRegionRequest struct {
	Region string `json:"region" binding:"required"`
}

// MutationResponse is returned by every dashboard/billing mutation.
type MutationResponse struct {
	Notice *Notice      `json:"notice"`
	Data   interface{}  `json:"data,omitempty"`
	View   *BillingView `json:"view,omitempty"`
}

// ==================== Billing DTOs ====================

// BillingView is the per-user billing state mirrored optimistically after
// mutations.
type BillingView struct {
	Subscriptions  []Server        `json:"subscriptions"`
	PaymentMethods []PaymentMethod `json:"payment_methods"`
}

// RedirectResponse carries a checkout or setup URL.
type RedirectResponse struct {
	URL string `json:"url"`
}

// ==================== Upgrade DTOs ====================

// UpgradePreviewRequest selects the target plan.
type UpgradePreviewRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

// UpgradePreview is the backend's prorated quote.
type UpgradePreview struct {
	PlanID        string `json:"plan_id"`
	PlanTitle     string `json:"plan_title"`
	Currency      string `json:"currency"`
	AmountDue     int64  `json:"amount_due"`
	ProrationDate int64  `json:"proration_date"`
	NextAmount    int64  `json:"next_amount"`
	NextBillingAt string `json:"next_billing_at,omitempty"`
}

// UpgradeConfirmation is returned after the backend charged the upgrade.
type UpgradeConfirmation struct {
	InvoiceID string `json:"invoice_id"`
	PlanID    string `json:"plan_id"`
	Status    string `json:"status"`
}

// ==================== File DTOs ====================

// FileListResponse lists one directory.
type FileListResponse struct {
	Directory string       `json:"directory"`
	Files     []FileObject `json:"files"`
}

// WriteFileRequest replaces the contents of a file.
type WriteFileRequest struct {
	File    string `json:"file" binding:"required"`
	Content string `json:"content"`
}

// RenameEntry is one from/to pair relative to the root.
type RenameEntry struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

// RenameFilesRequest renames files within a directory.
type RenameFilesRequest struct {
	Root  string        `json:"root"`
	Files []RenameEntry `json:"files" binding:"required,min=1,dive"`
}

// FilesRequest addresses a set of names within a directory.
type FilesRequest struct {
	Root  string   `json:"root"`
	Files []string `json:"files" binding:"required,min=1"`
}

// CreateFolderRequest creates a directory.
type CreateFolderRequest struct {
	Root string `json:"root"`
	Name string `json:"name" binding:"required"`
}

// DecompressRequest extracts an archive into its directory.
type DecompressRequest struct {
	Root string `json:"root"`
	File string `json:"file" binding:"required"`
}

// ==================== Backup DTOs ====================

// CreateBackupRequest creates a backup; the name is optional.
type CreateBackupRequest struct {
	Name string `json:"name" binding:"max=191"`
}

// RestoreBackupRequest restores a backup.
type RestoreBackupRequest struct {
	Truncate bool `json:"truncate"`
}

// ==================== Store DTOs ====================

// CheckoutRequest starts a purchase.
type CheckoutRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
	Region string `json:"region" binding:"required"`
	Name   string `json:"name" binding:"required,min=3,max=50"`
}

// CatalogResponse lists plans and regions.
type CatalogResponse struct {
	Plans   []Plan   `json:"plans"`
	Regions []Region `json:"regions"`
}
