//go:build integration

package firestore

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arzanfood/api/internal/domain"
	pconfig "github.com/arzanfood/api/internal/platform/config"
	pfirestore "github.com/arzanfood/api/internal/platform/firestore"
	"github.com/arzanfood/api/internal/repositories"
)

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

func TestOrderRepositoryIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}

	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	cfg := pconfig.FirestoreConfig{
		ProjectID:    "orders-test",
		EmulatorHost: endpoint,
	}

	provider := pfirestore.NewProvider(cfg)
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	repo, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("new order repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	order := domain.Order{
		ID:            "ord_01INTEG00000000000000000001",
		UserRef:       "user-integ",
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodWebMoney,
		PaymentStatus: domain.PaymentPending,
		Contact:       domain.OrderContact{Name: "Aziz", Phone: "+998901234567", Address: "Tashkent"},
		Items: []domain.OrderLineItem{
			{ProductRef: "prod-1", Name: "Plov", Quantity: 2, UnitPrice: 100000},
		},
		Subtotal:    200000,
		DeliveryFee: 50000,
		Total:       250000,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := repo.Insert(ctx, order); err != nil {
		t.Fatalf("insert: %v", err)
	}

	loaded, err := repo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if loaded.Total != order.Total || loaded.PaymentStatus != domain.PaymentPending {
		t.Fatalf("loaded order = %+v", loaded)
	}

	// The gateway may retry the confirmation, and retries can arrive
	// concurrently. Exactly one must mutate the document.
	success := repositories.PaymentSuccess{
		TransactionID: "tx-integ-1",
		PayerAccount:  "Z999000111222",
		TransDate:     "20260829 12:00:00",
		Amount:        "2500.00",
		OccurredAt:    now,
	}

	const workers = 8
	appliedCount := make([]bool, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(idx int) {
			defer wg.Done()
			_, applied, err := repo.ApplyPaymentSuccess(ctx, order.ID, success)
			if err != nil {
				t.Errorf("apply(%d): %v", idx, err)
				return
			}
			appliedCount[idx] = applied
		}(i)
	}
	wg.Wait()

	applies := 0
	for _, applied := range appliedCount {
		if applied {
			applies++
		}
	}
	if applies != 1 {
		t.Fatalf("expected exactly one applied confirmation, got %d", applies)
	}

	settled, err := repo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("find settled: %v", err)
	}
	if settled.Status != domain.OrderStatusConfirmed || settled.PaymentStatus != domain.PaymentSuccess {
		t.Fatalf("settled order = status %s, paymentStatus %s", settled.Status, settled.PaymentStatus)
	}
	if settled.PaymentID != success.TransactionID || settled.PaidAt == nil {
		t.Fatalf("settled order payment fields = %+v", settled)
	}

	// A late failure report must never downgrade the settled payment.
	afterFailure, applied, err := repo.MarkPaymentFailed(ctx, order.ID, repositories.PaymentFailure{
		Reason:     "late gateway failure redirect",
		OccurredAt: now.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("mark failed on settled: %v", err)
	}
	if applied {
		t.Fatal("failure must not apply to a settled order")
	}
	if afterFailure.PaymentStatus != domain.PaymentSuccess {
		t.Fatalf("payment status downgraded to %s", afterFailure.PaymentStatus)
	}

	// A failed order may still settle on a later verified confirmation.
	retryOrder := order
	retryOrder.ID = "ord_01INTEG00000000000000000002"
	retryOrder.CreatedAt = now.Add(time.Second)
	retryOrder.UpdatedAt = retryOrder.CreatedAt
	if err := repo.Insert(ctx, retryOrder); err != nil {
		t.Fatalf("insert retry order: %v", err)
	}

	if _, applied, err := repo.MarkPaymentFailed(ctx, retryOrder.ID, repositories.PaymentFailure{
		TransactionID: "tx-integ-2",
		Reason:        "checksum verification failed",
		OccurredAt:    now,
	}); err != nil || !applied {
		t.Fatalf("mark failed: applied=%v err=%v", applied, err)
	}

	recovered, applied, err := repo.ApplyPaymentSuccess(ctx, retryOrder.ID, repositories.PaymentSuccess{
		TransactionID: "tx-integ-2",
		PayerAccount:  "Z999000111222",
		TransDate:     "20260829 12:05:00",
		Amount:        "2500.00",
		OccurredAt:    now.Add(2 * time.Minute),
	})
	if err != nil {
		t.Fatalf("apply after failure: %v", err)
	}
	if !applied || recovered.PaymentStatus != domain.PaymentSuccess {
		t.Fatalf("retry settlement: applied=%v order=%+v", applied, recovered)
	}

	// Cursor paging: newest first, token resumes after the last row.
	third := order
	third.ID = "ord_01INTEG00000000000000000003"
	third.CreatedAt = now.Add(2 * time.Second)
	third.UpdatedAt = third.CreatedAt
	if err := repo.Insert(ctx, third); err != nil {
		t.Fatalf("insert third order: %v", err)
	}

	firstPage, err := repo.List(ctx, repositories.OrderListFilter{
		UserRef:    "user-integ",
		Pagination: domain.Pagination{PageSize: 2},
	})
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(firstPage.Items) != 2 || firstPage.NextPageToken == "" {
		t.Fatalf("first page = %d items, token %q", len(firstPage.Items), firstPage.NextPageToken)
	}
	if firstPage.Items[0].ID != third.ID {
		t.Fatalf("expected newest order first, got %s", firstPage.Items[0].ID)
	}

	secondPage, err := repo.List(ctx, repositories.OrderListFilter{
		UserRef:    "user-integ",
		Pagination: domain.Pagination{PageSize: 2, PageToken: firstPage.NextPageToken},
	})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(secondPage.Items) != 1 || secondPage.NextPageToken != "" {
		t.Fatalf("second page = %d items, token %q", len(secondPage.Items), secondPage.NextPageToken)
	}
	if secondPage.Items[0].ID == firstPage.Items[0].ID || secondPage.Items[0].ID == firstPage.Items[1].ID {
		t.Fatalf("second page repeated an order: %s", secondPage.Items[0].ID)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	addr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer addr.Close()
	return addr.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	args := []string{
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	}

	cmd := exec.Command("docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "info")
	if err := cmd.Run(); err != nil {
		t.Fatalf("docker daemon not available: %v", err)
	}
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "stop", id)
	_ = cmd.Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("firestore emulator at %s did not become ready within %s", endpoint, timeout)
}
