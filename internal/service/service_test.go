package service

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/catalog"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/client"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/config"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/secure"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"":               "/",
		"world":          "/world",
		"/world/":        "/world",
		"./plugins//x":   "/plugins/x",
		"\\logs\\latest": "/logs/latest",
		"  /a/./b/  ":    "/a/b",
	}
	for in, want := range cases {
		got, err := NormalizePath(in)
		if err != nil || got != want {
			t.Fatalf("NormalizePath(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"..", "/world/../../etc", "a/.."} {
		if _, err := NormalizePath(bad); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("NormalizePath(%q) accepted", bad)
		}
	}
}

func TestListSortsDirectoriesFirst(t *testing.T) {
	panel := &fakePanel{files: []models.FileObject{
		{Name: "server.properties", IsFile: true},
		{Name: "world", IsFile: false},
		{Name: "banned-ips.json", IsFile: true},
		{Name: "Plugins", IsFile: false},
	}}
	svc := NewFileService(panel)

	if _, err := svc.List(context.Background(), "sub_1", "world/../"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("escape accepted: %v", err)
	}
	res, err := svc.List(context.Background(), "sub_1", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var names []string
	for _, f := range res.Files {
		names = append(names, f.Name)
	}
	if got := strings.Join(names, ","); got != "Plugins,world,banned-ips.json,server.properties" {
		t.Fatalf("unexpected order %s", got)
	}
	if res.Directory != "/" || panel.calls[0] != "list /" {
		t.Fatalf("unexpected directory %s / calls %v", res.Directory, panel.calls)
	}
}

func TestFileMutationsValidateNames(t *testing.T) {
	panel := &fakePanel{}
	svc := NewFileService(panel)
	ctx := context.Background()

	if err := svc.Delete(ctx, "sub_1", "/world", []string{"../server.jar"}); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("traversal in delete accepted: %v", err)
	}
	if err := svc.Delete(ctx, "sub_1", "world", []string{"region", "level.dat"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if panel.lastRoot != "/world" || len(panel.lastNames) != 2 {
		t.Fatalf("unexpected delete %s %v", panel.lastRoot, panel.lastNames)
	}
	if err := svc.Rename(ctx, "sub_1", "/", []models.RenameEntry{{From: "a.txt", To: "old/a.txt"}}); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if panel.lastNames[0] != "a.txt->old/a.txt" {
		t.Fatalf("unexpected rename %v", panel.lastNames)
	}
	if err := svc.CreateFolder(ctx, "sub_1", "/", "a/b"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("nested folder name accepted: %v", err)
	}
	if err := svc.Write(ctx, "sub_1", "/", "x"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("write to root accepted: %v", err)
	}
}

func TestBackupCreateRelists(t *testing.T) {
	panel := &fakePanel{backups: []models.Backup{{ID: "b_1"}}}
	svc := NewBackupService(panel, zerolog.Nop())

	resp, err := svc.Create(context.Background(), "u1", "sub_1", " nightly ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	backups, ok := resp.Data.([]models.Backup)
	if !ok || len(backups) != 2 || backups[1].Name != "nightly" {
		t.Fatalf("unexpected data %+v", resp.Data)
	}
	if resp.Notice.Type != models.NoticeSuccess {
		t.Fatalf("unexpected notice %+v", resp.Notice)
	}

	panel.err = &client.APIError{StatusCode: 404}
	resp, err = svc.Restore(context.Background(), "u1", "sub_1", "b_x", true)
	if err == nil || resp.Notice.Message != "The requested resource was not found." {
		t.Fatalf("unexpected failure response %+v %v", resp, err)
	}
}

func TestSFTPCredentialsAreDecrypted(t *testing.T) {
	key := strings.Repeat("k", 32)
	dec, err := secure.NewPasswordDecrypter(key, secure.ModeGCM)
	if err != nil {
		t.Fatal(err)
	}
	block, _ := aes.NewCipher([]byte(key))
	aead, _ := cipher.NewGCM(block)
	nonce := make([]byte, aead.NonceSize())
	enc := base64.StdEncoding.EncodeToString(aead.Seal(nonce, nonce, []byte("s3cret"), nil))
	panel := &fakePanel{sftp: client.EncryptedSFTPCredentials{Host: "sftp.example", Port: 2022, Username: "u.1", Password: enc}}
	svc := NewSettingsService(panel, dec, zerolog.Nop())

	creds, err := svc.SFTPCredentials(context.Background(), "u1", "sub_1")
	if err != nil {
		t.Fatalf("SFTPCredentials: %v", err)
	}
	if creds.Password != "s3cret" || creds.Port != 2022 {
		t.Fatalf("unexpected credentials %+v", creds)
	}

	panel.sftp.Password = "garbage"
	if _, err := svc.SFTPCredentials(context.Background(), "u1", "sub_1"); err == nil {
		t.Fatal("expected decryption failure")
	}
}

func TestCheckoutWithStripe(t *testing.T) {
	cat, _ := catalog.Load("")
	backend := &fakeBilling{checkout: "https://backend.example/checkout"}
	svc := NewStoreService(config.StripeConfig{SecretKey: "sk_test_x", SuccessURL: "https://ok", CancelURL: "https://no"}, cat, backend, zerolog.Nop())

	var got *stripe.CheckoutSessionParams
	svc.createSession = func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		got = p
		return &stripe.CheckoutSession{URL: "https://checkout.stripe.example/s"}, nil
	}
	svc.newKey = func() string { return "idem-1" }

	url, err := svc.Checkout(context.Background(), "u1", &models.CheckoutRequest{PlanID: "standard", Region: "us-east", Name: " My Server "})
	if err != nil || url != "https://checkout.stripe.example/s" {
		t.Fatalf("Checkout = %q, %v", url, err)
	}
	if got.Metadata["user_id"] != "u1" || got.Metadata["server_name"] != "My Server" || got.Metadata["region"] != "us-east" {
		t.Fatalf("unexpected metadata %v", got.Metadata)
	}
	if *got.IdempotencyKey != "idem-1" || *got.Mode != string(stripe.CheckoutSessionModeSubscription) {
		t.Fatalf("unexpected params %+v", got)
	}
	if *got.LineItems[0].PriceData.UnitAmount != 1000 {
		t.Fatalf("unexpected price %d", *got.LineItems[0].PriceData.UnitAmount)
	}
	if len(backend.calls) != 0 {
		t.Fatalf("backend used alongside stripe: %v", backend.calls)
	}

	if _, err := svc.Checkout(context.Background(), "u1", &models.CheckoutRequest{PlanID: "standard", Region: "ap-southeast", Name: "x"}); err == nil {
		t.Fatal("unavailable region accepted")
	}
}

func TestCheckoutFallsBackToBackend(t *testing.T) {
	cat, _ := catalog.Load("")
	backend := &fakeBilling{checkout: "https://backend.example/checkout"}
	svc := NewStoreService(config.StripeConfig{}, cat, backend, zerolog.Nop())

	url, err := svc.Checkout(context.Background(), "u1", &models.CheckoutRequest{PlanID: "starter", Region: "eu-central", Name: "srv"})
	if err != nil || url != "https://backend.example/checkout" {
		t.Fatalf("Checkout = %q, %v", url, err)
	}
	if len(svc.Catalog().Regions) != 3 {
		t.Fatalf("expected only available regions, got %+v", svc.Catalog().Regions)
	}
}

func TestConcurrentSettingsUpdateIsBusy(t *testing.T) {
	panel := &fakePanel{block: make(chan struct{})}
	svc := NewSettingsService(panel, nil, zerolog.Nop())
	ctx := context.Background()

	done := make(chan error, 2)
	go func() {
		_, err := svc.UpdateSettings(ctx, "u1", "sub_1", &models.ServerSettings{Name: "first"})
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for panel.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first update never reached the panel")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := svc.UpdateSettings(ctx, "u1", "sub_1", &models.ServerSettings{Name: "second"})
	if !errors.Is(err, ErrBusy) || resp.Notice.Type != models.NoticeError {
		t.Fatalf("expected ErrBusy with notice, got %v %+v", err, resp)
	}
	go func() {
		_, err := svc.UpdateSettings(ctx, "u2", "sub_1", &models.ServerSettings{Name: "other"})
		done <- err
	}()
	for panel.callCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("another user's save was blocked")
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(panel.block)
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	if _, err := svc.UpdateSettings(ctx, "u1", "sub_1", &models.ServerSettings{Name: "third"}); err != nil {
		t.Fatalf("update after release: %v", err)
	}
}
