package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"partspos/backend/internal/cache"
	"partspos/backend/internal/domain"
	"partspos/backend/internal/service"
	"partspos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopReportCache{}, 5*time.Second, "test-shop")
	auth := NewAuthManager("test-secret-key", time.Hour, "481570", repo)

	return New(svc, auth, "*")
}

func loginToken(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func csrfToken(t *testing.T, handler http.Handler) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("csrf token fetch failed: %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode csrf response: %v", err)
	}
	return body["csrf_token"]
}

func authedRequest(t *testing.T, handler http.Handler, method, path, token, csrf string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleLogin_RateLimit(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	// The loginLimiter allows 5 attempts per minute.
	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "badpass",
	})

	var lastCode int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after 6 attempts, got %d", lastCode)
	}
}

func TestHandleCatalog_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleCatalog_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")

	rec := authedRequest(t, handler, http.MethodGet, "/api/v1/catalog", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["parts"] == nil {
		t.Fatalf("expected parts key in response, got %v", body)
	}
}

func TestHandleSales_RequiresCSRF(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")

	rec := authedRequest(t, handler, http.MethodPost, "/api/v1/sales", token, "", domain.SaleCreateRequest{
		PartNumber:   "HY-1001",
		Quantity:     1,
		Price:        450,
		CustomerName: "Walk-in",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without CSRF token, got %d", rec.Code)
	}
}

func TestHandleSales_CreateAndReturnable(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")
	csrf := csrfToken(t, handler)

	rec := authedRequest(t, handler, http.MethodPost, "/api/v1/sales", token, csrf, domain.SaleCreateRequest{
		PartNumber:   "HY-1001",
		Quantity:     3,
		Price:        450,
		CustomerName: "Ravi Kumar",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var created domain.TransactionResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode sale response: %v", err)
	}
	if created.Transaction.Status != domain.TxStatusApproved {
		t.Fatalf("expected admin sale approved, got %s", created.Transaction.Status)
	}

	path := fmt.Sprintf("/api/v1/sales/%s/returnable", created.Transaction.ID)
	rec = authedRequest(t, handler, http.MethodGet, path, token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var returnable domain.ReturnableResponse
	if err := json.NewDecoder(rec.Body).Decode(&returnable); err != nil {
		t.Fatalf("decode returnable: %v", err)
	}
	if returnable.Remaining != 3 {
		t.Fatalf("expected 3 returnable, got %d", returnable.Remaining)
	}
}

func TestHandleRequisitionDecide_InvalidPIN(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")
	csrf := csrfToken(t, handler)

	rec := authedRequest(t, handler, http.MethodPost, "/api/v1/requisitions/decide", token, csrf, domain.RequisitionDecisionRequest{
		TransactionID: "tx-anything",
		Approve:       true,
		ManagerPIN:    "000000",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with wrong PIN, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleRequisitionDecide_ApprovesPendingSale(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	adminToken := loginToken(t, handler, "admin", "admin123")
	cashierToken := loginToken(t, handler, "cashier", "cashier123")
	csrf := csrfToken(t, handler)

	rec := authedRequest(t, handler, http.MethodPost, "/api/v1/sales", cashierToken, csrf, domain.SaleCreateRequest{
		PartNumber:   "MH-2001",
		Quantity:     2,
		Price:        560,
		CustomerName: "Walk-in",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("cashier sale failed: %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created domain.TransactionResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode sale response: %v", err)
	}
	if created.Transaction.Status != domain.TxStatusPending {
		t.Fatalf("expected cashier sale pending, got %s", created.Transaction.Status)
	}

	rec = authedRequest(t, handler, http.MethodPost, "/api/v1/requisitions/decide", adminToken, csrf, domain.RequisitionDecisionRequest{
		TransactionID: created.Transaction.ID,
		Approve:       true,
		ManagerPIN:    "481570",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("decide failed: %d (body: %s)", rec.Code, rec.Body.String())
	}

	var decided domain.RequisitionDecisionResponse
	if err := json.NewDecoder(rec.Body).Decode(&decided); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	if decided.Transaction.Status != domain.TxStatusApproved {
		t.Fatalf("expected approved, got %s", decided.Transaction.Status)
	}
}

func TestHandleRequisitions_ForbiddenForCashier(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "cashier", "cashier123")

	rec := authedRequest(t, handler, http.MethodGet, "/api/v1/requisitions", token, "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", rec.Code)
	}
}

func TestHandleComplianceReport_JSONAndCSV(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")
	csrf := csrfToken(t, handler)

	rec := authedRequest(t, handler, http.MethodPost, "/api/v1/purchases", token, csrf, domain.PurchaseCreateRequest{
		PartNumber: "HY-1001",
		Quantity:   10,
		Price:      420,
		VendorName: "Sharma Auto",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("purchase failed: %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = authedRequest(t, handler, http.MethodGet, "/api/v1/reports/compliance?view=offenders", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("report failed: %d (body: %s)", rec.Code, rec.Body.String())
	}

	var report domain.ComplianceReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	// HY-1001 MRP 450, benchmark 396: (420-396)*10 = 240 leakage.
	if report.TotalLeakage < 239.9 || report.TotalLeakage > 240.1 {
		t.Fatalf("expected leakage ~240, got %v", report.TotalLeakage)
	}

	rec = authedRequest(t, handler, http.MethodGet, "/api/v1/reports/compliance?format=csv", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("csv report failed: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/csv") {
		t.Fatalf("expected csv content type, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "total_leakage") {
		t.Fatalf("expected total_leakage row in CSV")
	}

	rec = authedRequest(t, handler, http.MethodGet, "/api/v1/reports/compliance?format=html", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("html report failed: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Purchase Compliance Report") {
		t.Fatalf("expected printable HTML report")
	}
}

func TestHandleTaxInvoice_HTMLFormat(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")
	csrf := csrfToken(t, handler)

	rec := authedRequest(t, handler, http.MethodPost, "/api/v1/sales", token, csrf, domain.SaleCreateRequest{
		PartNumber:   "HY-1004",
		Quantity:     1,
		Price:        3400,
		CustomerName: "Garage 42",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("sale failed: %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created domain.TransactionResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode sale: %v", err)
	}

	path := fmt.Sprintf("/api/v1/invoices/%s/tax?format=html", created.Transaction.ID)
	rec = authedRequest(t, handler, http.MethodGet, path, token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("invoice failed: %d (body: %s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Tax Invoice") {
		t.Fatalf("expected invoice HTML body")
	}
}

func TestHandleCashiers_CreateAndList(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")
	csrf := csrfToken(t, handler)

	rec := authedRequest(t, handler, http.MethodPost, "/api/v1/users/cashiers", token, csrf, domain.CashierCreateRequest{
		Username: "counter2",
		Password: "counter2pass",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create cashier failed: %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = authedRequest(t, handler, http.MethodGet, "/api/v1/users/cashiers", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list cashiers failed: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "counter2") {
		t.Fatalf("expected new cashier in listing")
	}
}
