package http

import (
	"context"
	"sync"

	"github.com/wenwu/saas-platform/minecraft-portal/internal/client"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
)

// fakeBackend stands in for the panel and billing APIs.
type fakeBackend struct {
	mu      sync.Mutex
	servers []models.Server
	methods []models.PaymentMethod
	calls   []string
	err     error
}

func (f *fakeBackend) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeBackend) ListSubscriptions(ctx context.Context) ([]models.Server, error) {
	return append([]models.Server(nil), f.servers...), nil
}
func (f *fakeBackend) ListInvoices(ctx context.Context) ([]models.Invoice, error) {
	return []models.Invoice{{ID: "in_1"}}, nil
}
func (f *fakeBackend) ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	return append([]models.PaymentMethod(nil), f.methods...), nil
}
func (f *fakeBackend) CancelSubscription(ctx context.Context, id string) error {
	return f.record("cancel " + id)
}
func (f *fakeBackend) UncancelSubscription(ctx context.Context, id string) error {
	return f.record("uncancel " + id)
}
func (f *fakeBackend) SetDefaultPaymentMethod(ctx context.Context, id string) error {
	return f.record("default " + id)
}
func (f *fakeBackend) UnsetDefaultPaymentMethod(ctx context.Context, id string) error {
	return f.record("undefault " + id)
}
func (f *fakeBackend) RemovePaymentMethod(ctx context.Context, id string) error {
	return f.record("remove " + id)
}
func (f *fakeBackend) AddPaymentMethod(ctx context.Context) (string, error) {
	return "https://pay.example/setup", f.record("add")
}
func (f *fakeBackend) Checkout(ctx context.Context, req *models.CheckoutRequest) (string, error) {
	return "https://pay.example/checkout", f.record("checkout " + req.PlanID)
}

func (f *fakeBackend) EditServer(ctx context.Context, id, name string) error {
	return f.record("edit " + id + " " + name)
}
func (f *fakeBackend) ChangeRegion(ctx context.Context, id, region string) error {
	return f.record("region " + id + " " + region)
}
func (f *fakeBackend) PreviewUpgrade(ctx context.Context, id, planID string) (*models.UpgradePreview, error) {
	return &models.UpgradePreview{PlanID: planID, AmountDue: 100}, f.record("preview " + planID)
}
func (f *fakeBackend) ConfirmUpgrade(ctx context.Context, id, planID string, prorationDate int64) (*models.UpgradeConfirmation, error) {
	return &models.UpgradeConfirmation{InvoiceID: "in_up"}, f.record("confirm " + planID)
}
func (f *fakeBackend) ResourceLimits(ctx context.Context, id string) (*models.ResourceLimits, error) {
	return &models.ResourceLimits{Memory: 2048}, f.record("limits " + id)
}

func (f *fakeBackend) ListFiles(ctx context.Context, id, dir string) ([]models.FileObject, error) {
	return []models.FileObject{{Name: "server.properties", IsFile: true}, {Name: "world"}}, f.record("list " + dir)
}
func (f *fakeBackend) FileContents(ctx context.Context, id, file string) (string, error) {
	return "motd=hello", f.record("contents " + file)
}
func (f *fakeBackend) WriteFile(ctx context.Context, id, file, content string) error {
	return f.record("write " + file)
}
func (f *fakeBackend) RenameFiles(ctx context.Context, id, root string, files []models.RenameEntry) error {
	return f.record("rename " + root)
}
func (f *fakeBackend) DeleteFiles(ctx context.Context, id, root string, files []string) error {
	return f.record("delete " + root)
}
func (f *fakeBackend) CreateFolder(ctx context.Context, id, root, name string) error {
	return f.record("mkdir " + root + " " + name)
}
func (f *fakeBackend) CompressFiles(ctx context.Context, id, root string, files []string) (*models.FileObject, error) {
	return &models.FileObject{Name: "archive.tar.gz", IsFile: true}, f.record("compress " + root)
}
func (f *fakeBackend) DecompressFile(ctx context.Context, id, root, file string) error {
	return f.record("decompress " + file)
}
func (f *fakeBackend) FileDownloadURL(ctx context.Context, id, file string) (string, error) {
	return "https://files.example/dl", f.record("download " + file)
}
func (f *fakeBackend) FileUploadURL(ctx context.Context, id, dir string) (string, error) {
	return "https://files.example/ul", f.record("upload " + dir)
}

func (f *fakeBackend) ListBackups(ctx context.Context, userID, id string) ([]models.Backup, error) {
	return []models.Backup{{ID: "b1", Name: "nightly"}}, nil
}
func (f *fakeBackend) CreateBackup(ctx context.Context, userID, id, name string) (*models.Backup, error) {
	return &models.Backup{ID: "b2", Name: name}, f.record("create backup " + name)
}
func (f *fakeBackend) DeleteBackup(ctx context.Context, userID, id, backupID string) error {
	return f.record("delete backup " + backupID)
}
func (f *fakeBackend) RestoreBackup(ctx context.Context, userID, id, backupID string, truncate bool) error {
	return f.record("restore backup " + backupID)
}
func (f *fakeBackend) BackupDownloadURL(ctx context.Context, userID, id, backupID string) (string, error) {
	return "https://backups.example/" + backupID, f.record("download backup " + backupID)
}

func (f *fakeBackend) Settings(ctx context.Context, userID, id string) (*models.ServerSettings, error) {
	return &models.ServerSettings{Name: "srv"}, nil
}
func (f *fakeBackend) UpdateSettings(ctx context.Context, userID, id string, s *models.ServerSettings) error {
	return f.record("update settings " + s.Name)
}
func (f *fakeBackend) SFTPCredentials(ctx context.Context, userID, id string) (*client.EncryptedSFTPCredentials, error) {
	return &client.EncryptedSFTPCredentials{Host: "sftp.example", Port: 2022, Username: "u1.abc", Password: "cipher"}, nil
}

type fakeDecrypter struct{}

func (fakeDecrypter) Decrypt(encoded string) (string, error) { return "plain-" + encoded, nil }

type fakeChecker struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeChecker) CheckAll(ctx context.Context, servers []models.Server) map[string]models.ServerStatus {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	out := make(map[string]models.ServerStatus, len(servers))
	for _, s := range servers {
		out[s.SubscriptionID] = models.ServerStatus{
			SubscriptionID: s.SubscriptionID,
			Provisioning:   models.ProvisioningReady,
		}
	}
	return out
}

type fakePinger struct{ up map[string]bool }

func (f fakePinger) Ping(ctx context.Context, address string) (bool, error) {
	return f.up[address], nil
}
