package reception

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hermespos/internal"
	"hermespos/internal/config"
	"hermespos/internal/source"
	"hermespos/internal/storage"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

const deliveryNotePage = `<html><body>
<div>Αποστολέας: Κατσούλας ΑΕ</div>
<span id="tmark">400001833933391</span>
<table id="tableDiakinisis">
<tr><th>Κωδικός</th><th>Περιγραφή</th><th>Ποσότητα</th></tr>
<tr><td>7788</td><td>Σαμπουάν 400ml</td><td>3,00</td></tr>
<tr><td>7789</td><td>Κάτι καινούριο</td><td>2</td></tr>
</table>
</body></html>`

func newTestService(t *testing.T, page string) (*Service, *storage.DB, int) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := internal.Supplier{Name: "Κατσούλας ΑΕ"}
	if err := db.AddSupplier(&s); err != nil {
		t.Fatal(err)
	}
	p := internal.Product{Barcode: "5201111111111", Name: "Σαμπουάν 400ml", SupplierID: internal.IntPtr(s.ID)}
	if err := db.AddProduct(&p); err != nil {
		t.Fatal(err)
	}

	cfg := config.Config{AadeQRBaseURL: "https://mydatapi.aade.gr/myDATA/TimologioQR/QRInfo"}
	fetcher := source.NewFetcher(5*time.Second, "test-agent/1.0")
	fetcher.Client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(page)),
				Header:     make(http.Header),
			}, nil
		}),
	}
	return NewService(db, fetcher, cfg), db, s.ID
}

func TestImportCreatesDraft(t *testing.T) {
	svc, db, supplierID := newTestService(t, deliveryNotePage)

	res, err := svc.Import(context.Background(), "400001833933391", supplierID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Existing {
		t.Fatal("fresh import flagged as existing")
	}

	rec := res.Reception
	if rec.ID == 0 || rec.Mark != "400001833933391" || rec.Status != internal.StatusDraft {
		t.Fatalf("reception=%+v", rec)
	}
	if len(rec.Items) != 2 {
		t.Fatalf("items=%d", len(rec.Items))
	}
	if rec.Items[0].Quantity.String() != "3" {
		t.Fatalf("qty=%s", rec.Items[0].Quantity)
	}

	// pass 2 proposes the catalog product whose name matches line 1
	if len(res.Suggestions) != 1 || res.Suggestions[0].Row != 0 {
		t.Fatalf("suggestions=%+v", res.Suggestions)
	}

	stored, err := db.GetReception(rec.ID)
	if err != nil || stored == nil {
		t.Fatalf("stored=%+v err=%v", stored, err)
	}
}

func TestImportIsIdempotentByMark(t *testing.T) {
	svc, _, supplierID := newTestService(t, deliveryNotePage)

	first, err := svc.Import(context.Background(), "400001833933391", supplierID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Import(context.Background(), "400001833933391", supplierID)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Existing {
		t.Fatal("re-import not flagged as existing")
	}
	if second.Reception.ID != first.Reception.ID {
		t.Fatalf("ids differ: %d vs %d", first.Reception.ID, second.Reception.ID)
	}
}

func TestImportDetectsSupplierFromDocument(t *testing.T) {
	svc, _, supplierID := newTestService(t, deliveryNotePage)

	res, err := svc.Import(context.Background(), "400001833933391", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.SupplierHint == nil || *res.SupplierHint != supplierID {
		t.Fatalf("hint=%v", res.SupplierHint)
	}
	if res.Reception.SupplierID != supplierID {
		t.Fatalf("supplierId=%d", res.Reception.SupplierID)
	}
}

func TestImportAutoMapsLearnedCodes(t *testing.T) {
	svc, db, supplierID := newTestService(t, deliveryNotePage)

	p, err := db.ProductByBarcode("5201111111111")
	if err != nil || p == nil {
		t.Fatal(err)
	}
	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Exec(
		`INSERT INTO supplier_product_map (supplierId, supplierCode, productId) VALUES (?, ?, ?)`,
		supplierID, "7788", p.ID); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Import(context.Background(), "400001833933391", supplierID)
	if err != nil {
		t.Fatal(err)
	}
	if res.AutoFilled != 1 {
		t.Fatalf("autoFilled=%d", res.AutoFilled)
	}
	it := res.Reception.Items[0]
	if it.Barcode == nil || *it.Barcode != "5201111111111" {
		t.Fatalf("item=%+v", it)
	}
}

func TestApplySuggestion(t *testing.T) {
	svc, db, supplierID := newTestService(t, deliveryNotePage)

	res, err := svc.Import(context.Background(), "400001833933391", supplierID)
	if err != nil {
		t.Fatal(err)
	}

	rec, err := svc.ApplySuggestion(res.Reception.ID, 0, "5201111111111")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Items[0].Barcode == nil || *rec.Items[0].Barcode != "5201111111111" {
		t.Fatalf("item=%+v", rec.Items[0])
	}
	if rec.Items[0].ProductID == nil {
		t.Fatal("productId not resolved")
	}

	stored, err := db.GetReception(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Items[0].Barcode == nil || *stored.Items[0].Barcode != "5201111111111" {
		t.Fatalf("stored item=%+v", stored.Items[0])
	}

	// the confirmed line no longer shows up in pass 2
	suggestions, err := svc.matcher.Suggest(supplierID, stored.Items)
	if err != nil {
		t.Fatal(err)
	}
	if len(suggestions) != 0 {
		t.Fatalf("suggestions=%+v", suggestions)
	}
}

func TestApplySuggestionRowOutOfRange(t *testing.T) {
	svc, _, supplierID := newTestService(t, deliveryNotePage)

	res, err := svc.Import(context.Background(), "400001833933391", supplierID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ApplySuggestion(res.Reception.ID, 99, "5201111111111"); err == nil {
		t.Fatal("expected error")
	}
}

func TestExportReceptionXLSX(t *testing.T) {
	svc, db, supplierID := newTestService(t, deliveryNotePage)

	res, err := svc.Import(context.Background(), "400001833933391", supplierID)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "reception.xlsx")
	if err := ExportReceptionXLSX(db, res.Reception.ID, out); err != nil {
		t.Fatal(err)
	}
}
