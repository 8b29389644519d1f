package service

import (
	"context"
	"sync"

	"github.com/wenwu/saas-platform/minecraft-portal/internal/client"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
)

type fakeBilling struct {
	mu       sync.Mutex
	subs     []models.Server
	methods  []models.PaymentMethod
	invoices []models.Invoice
	calls    []string
	err      error
	block    chan struct{}
	checkout string
}

func (f *fakeBilling) record(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	block, err := f.block, f.err
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (f *fakeBilling) ListSubscriptions(ctx context.Context) ([]models.Server, error) {
	return append([]models.Server(nil), f.subs...), nil
}
func (f *fakeBilling) ListInvoices(ctx context.Context) ([]models.Invoice, error) {
	return f.invoices, nil
}
func (f *fakeBilling) ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	return append([]models.PaymentMethod(nil), f.methods...), nil
}
func (f *fakeBilling) CancelSubscription(ctx context.Context, id string) error {
	return f.record("cancel " + id)
}
func (f *fakeBilling) UncancelSubscription(ctx context.Context, id string) error {
	return f.record("uncancel " + id)
}
func (f *fakeBilling) SetDefaultPaymentMethod(ctx context.Context, id string) error {
	return f.record("default " + id)
}
func (f *fakeBilling) UnsetDefaultPaymentMethod(ctx context.Context, id string) error {
	return f.record("undefault " + id)
}
func (f *fakeBilling) RemovePaymentMethod(ctx context.Context, id string) error {
	return f.record("remove " + id)
}
func (f *fakeBilling) AddPaymentMethod(ctx context.Context) (string, error) {
	return "https://pay.example/setup", f.record("add")
}
func (f *fakeBilling) Checkout(ctx context.Context, req *models.CheckoutRequest) (string, error) {
	if err := f.record("checkout " + req.PlanID); err != nil {
		return "", err
	}
	return f.checkout, nil
}

type fakePanel struct {
	mu        sync.Mutex
	calls     []string
	err       error
	files     []models.FileObject
	backups   []models.Backup
	preview   models.UpgradePreview
	confirm   models.UpgradeConfirmation
	sftp      client.EncryptedSFTPCredentials
	lastRoot  string
	lastNames []string
	block     chan struct{}
}

func (f *fakePanel) record(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	block, err := f.block, f.err
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (f *fakePanel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakePanel) EditServer(ctx context.Context, id, name string) error {
	return f.record("edit " + id + " " + name)
}
func (f *fakePanel) ChangeRegion(ctx context.Context, id, region string) error {
	return f.record("region " + id + " " + region)
}
func (f *fakePanel) PreviewUpgrade(ctx context.Context, id, planID string) (*models.UpgradePreview, error) {
	if err := f.record("preview " + id + " " + planID); err != nil {
		return nil, err
	}
	p := f.preview
	p.PlanID = planID
	return &p, nil
}
func (f *fakePanel) ConfirmUpgrade(ctx context.Context, id, planID string, prorationDate int64) (*models.UpgradeConfirmation, error) {
	if err := f.record("confirm " + id + " " + planID); err != nil {
		return nil, err
	}
	c := f.confirm
	return &c, nil
}
func (f *fakePanel) ResourceLimits(ctx context.Context, id string) (*models.ResourceLimits, error) {
	return &models.ResourceLimits{Memory: 4096}, f.record("limits " + id)
}

func (f *fakePanel) ListFiles(ctx context.Context, id, dir string) ([]models.FileObject, error) {
	return append([]models.FileObject(nil), f.files...), f.record("list " + dir)
}
func (f *fakePanel) FileContents(ctx context.Context, id, file string) (string, error) {
	return "contents", f.record("contents " + file)
}
func (f *fakePanel) WriteFile(ctx context.Context, id, file, content string) error {
	return f.record("write " + file)
}
func (f *fakePanel) RenameFiles(ctx context.Context, id, root string, files []models.RenameEntry) error {
	f.lastRoot = root
	f.lastNames = nil
	for _, e := range files {
		f.lastNames = append(f.lastNames, e.From+"->"+e.To)
	}
	return f.record("rename")
}
func (f *fakePanel) DeleteFiles(ctx context.Context, id, root string, files []string) error {
	f.lastRoot, f.lastNames = root, files
	return f.record("delete")
}
func (f *fakePanel) CreateFolder(ctx context.Context, id, root, name string) error {
	return f.record("mkdir " + root + " " + name)
}
func (f *fakePanel) CompressFiles(ctx context.Context, id, root string, files []string) (*models.FileObject, error) {
	f.lastRoot, f.lastNames = root, files
	return &models.FileObject{Name: "archive.tar.gz", IsFile: true}, f.record("compress")
}
func (f *fakePanel) DecompressFile(ctx context.Context, id, root, file string) error {
	return f.record("decompress " + root + " " + file)
}
func (f *fakePanel) FileDownloadURL(ctx context.Context, id, file string) (string, error) {
	return "https://files.example/dl", f.record("download " + file)
}
func (f *fakePanel) FileUploadURL(ctx context.Context, id, dir string) (string, error) {
	return "https://files.example/ul", f.record("upload " + dir)
}

func (f *fakePanel) ListBackups(ctx context.Context, userID, id string) ([]models.Backup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "list backups")
	return append([]models.Backup(nil), f.backups...), nil
}
func (f *fakePanel) CreateBackup(ctx context.Context, userID, id, name string) (*models.Backup, error) {
	if err := f.record("create backup " + name); err != nil {
		return nil, err
	}
	f.mu.Lock()
	b := models.Backup{ID: "b_new", Name: name}
	f.backups = append(f.backups, b)
	f.mu.Unlock()
	return &b, nil
}
func (f *fakePanel) DeleteBackup(ctx context.Context, userID, id, backupID string) error {
	return f.record("delete backup " + backupID)
}
func (f *fakePanel) RestoreBackup(ctx context.Context, userID, id, backupID string, truncate bool) error {
	return f.record("restore backup " + backupID)
}
func (f *fakePanel) BackupDownloadURL(ctx context.Context, userID, id, backupID string) (string, error) {
	return "https://backups.example/" + backupID, f.record("download backup " + backupID)
}

func (f *fakePanel) Settings(ctx context.Context, userID, id string) (*models.ServerSettings, error) {
	return &models.ServerSettings{Name: "srv"}, f.record("settings")
}
func (f *fakePanel) UpdateSettings(ctx context.Context, userID, id string, s *models.ServerSettings) error {
	return f.record("update settings " + s.Name)
}
func (f *fakePanel) SFTPCredentials(ctx context.Context, userID, id string) (*client.EncryptedSFTPCredentials, error) {
	c := f.sftp
	return &c, f.record("sftp")
}

type fakeChecker struct{}

func (fakeChecker) CheckAll(ctx context.Context, servers []models.Server) map[string]models.ServerStatus {
	out := make(map[string]models.ServerStatus, len(servers))
	for _, s := range servers {
		out[s.SubscriptionID] = models.ServerStatus{SubscriptionID: s.SubscriptionID, Provisioning: models.ProvisioningReady}
	}
	return out
}
