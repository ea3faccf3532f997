package httpapi

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"partspos/backend/internal/domain"
	"partspos/backend/internal/service"
	"partspos/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	pinLimiter    *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// Fall back to a deterministic secret if crypto/rand fails (should not happen in practice).
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		pinLimiter:    newAttemptLimiter(8, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken checks whether the provided token matches the current or
// previous hour bucket, giving a 2-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	now := time.Now().UTC()
	currentBucket := now.Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)

	mux.HandleFunc("/api/v1/catalog", a.requireAuth(a.handleCatalog, "cashier", "admin"))
	mux.HandleFunc("/api/v1/catalog/import", a.requireAuth(a.handleCatalogImport, "admin"))
	mux.HandleFunc("/api/v1/catalog/", a.requireAuth(a.handleCatalogActions, "admin"))

	mux.HandleFunc("/api/v1/sales", a.requireAuth(a.handleSales, "cashier", "admin"))
	mux.HandleFunc("/api/v1/sales/", a.requireAuth(a.handleSaleActions, "cashier", "admin"))
	mux.HandleFunc("/api/v1/purchases", a.requireAuth(a.handlePurchases, "cashier", "admin"))
	mux.HandleFunc("/api/v1/returns", a.requireAuth(a.handleReturns, "cashier", "admin"))
	mux.HandleFunc("/api/v1/payments/collect", a.requireAuth(a.handlePaymentCollect, "cashier", "admin"))
	mux.HandleFunc("/api/v1/payments/outstanding", a.requireAuth(a.handleOutstanding, "admin"))
	mux.HandleFunc("/api/v1/transactions", a.requireAuth(a.handleTransactions, "cashier", "admin"))
	mux.HandleFunc("/api/v1/transactions/", a.requireAuth(a.handleTransactionLookup, "cashier", "admin"))

	mux.HandleFunc("/api/v1/requisitions", a.requireAuth(a.handleRequisitions, "admin"))
	mux.HandleFunc("/api/v1/requisitions/decide", a.requireAuth(a.handleRequisitionDecide, "admin"))

	mux.HandleFunc("/api/v1/reports/compliance", a.requireAuth(a.handleComplianceReport, "admin"))
	mux.HandleFunc("/api/v1/invoices/", a.requireAuth(a.handleTaxInvoice, "cashier", "admin"))
	mux.HandleFunc("/api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, "admin"))
	mux.HandleFunc("/api/v1/users/cashiers", a.requireAuth(a.handleCashiers, "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour bucket.
// Clients must include this token in the X-CSRF-Token header for all mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// csrfExemptPaths lists paths exempt from CSRF validation. Login is excluded
// because it is called before any CSRF token fetch.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces CSRF token validation for state-changing methods (POST/PUT/PATCH).
// Returns false and writes an error response if validation fails.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func statusForServiceError(err error) int {
	status := http.StatusUnprocessableEntity
	if errors.Is(err, store.ErrNotFound) {
		status = http.StatusNotFound
	}
	if errors.Is(err, store.ErrInvalidInput) {
		status = http.StatusBadRequest
	}
	if errors.Is(err, store.ErrConflict) {
		status = http.StatusConflict
	}
	if strings.Contains(strings.ToLower(err.Error()), "admin role required") {
		status = http.StatusForbidden
	}
	return status
}

func (a *API) handleCatalog(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.service.ListCatalog(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"parts": items})
	case http.MethodPost:
		actor, ok := service.ActorFromContext(r.Context())
		if !ok || actor.Role != "admin" {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		var req domain.CatalogItemCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		item, err := a.service.CreateCatalogItem(r.Context(), req)
		if err != nil {
			writeError(w, statusForServiceError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"part": item})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCatalogImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.CatalogImportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.ImportCatalog(r.Context(), req)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCatalogActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/catalog/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeError(w, http.StatusBadRequest, errors.New("invalid catalog action path"))
		return
	}

	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("part number required"))
		return
	}

	if strings.HasSuffix(tail, "/price-history") {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		partNumber := strings.Trim(strings.TrimSuffix(tail, "/price-history"), "/")
		if partNumber == "" {
			writeError(w, http.StatusBadRequest, errors.New("part number required"))
			return
		}

		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 200)

		history, err := a.service.ListPartPriceHistory(r.Context(), partNumber, limit)
		if err != nil {
			writeError(w, statusForServiceError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": history})
		return
	}

	if r.Method != http.MethodPatch {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.CatalogItemUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := a.service.UpdateCatalogItem(r.Context(), tail, req)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"part": updated})
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.SaleCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.RecordSale(r.Context(), req)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	prefix := "/api/v1/sales/"
	if !strings.HasPrefix(r.URL.Path, prefix) || !strings.HasSuffix(r.URL.Path, "/returnable") {
		writeError(w, http.StatusBadRequest, errors.New("invalid sale action path"))
		return
	}
	saleID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, prefix), "/returnable")
	saleID = strings.TrimSpace(strings.Trim(saleID, "/"))
	if saleID == "" {
		writeError(w, http.StatusBadRequest, errors.New("sale id required"))
		return
	}

	resp, err := a.service.Returnable(r.Context(), saleID)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handlePurchases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.PurchaseCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.RecordPurchase(r.Context(), req)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleReturns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ReturnCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.RecordReturn(r.Context(), req)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handlePaymentCollect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.PaymentCollectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.CollectPayment(r.Context(), req)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleOutstanding(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 200, 500)
	balances, err := a.service.ListOutstanding(r.Context(), limit)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outstanding": balances})
}

func (a *API) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	filter := store.TransactionFilter{
		Type:   strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("type"))),
		Status: strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))),
		Limit:  parsePositiveLimit(r.URL.Query().Get("limit"), 200, 1000),
	}
	if from, ok := parseTimeParam(r.URL.Query().Get("from")); ok {
		filter.From = from
	}
	if to, ok := parseTimeParam(r.URL.Query().Get("to")); ok {
		filter.To = to
	}

	resp, err := a.service.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleTransactionLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	prefix := "/api/v1/transactions/"
	id := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("transaction id required"))
		return
	}

	resp, err := a.service.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRequisitions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	resp, err := a.service.ListPendingRequisitions(r.Context(), limit)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRequisitionDecide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.RequisitionDecisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !a.pinLimiter.Allow("pin:requisition:" + clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many manager pin attempts"))
		return
	}
	if !a.auth.ValidateManagerPIN(req.ManagerPIN) {
		writeError(w, http.StatusForbidden, errors.New("invalid manager pin"))
		return
	}

	resp, err := a.service.DecideRequisition(r.Context(), req)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleComplianceReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	now := time.Now().UTC()
	windowStart := now.Add(-30 * 24 * time.Hour)
	windowEnd := now
	if from, ok := parseTimeParam(r.URL.Query().Get("from")); ok {
		windowStart = from
	}
	if to, ok := parseTimeParam(r.URL.Query().Get("to")); ok {
		windowEnd = to
	}
	brand := r.URL.Query().Get("brand")
	view := r.URL.Query().Get("view")
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))

	report, err := a.service.ComplianceReport(r.Context(), windowStart, windowEnd, brand, view)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"compliance-report-%s.csv\"", report.WindowStart.Format("2006-01-02")))
		_, _ = w.Write([]byte(complianceReportToCSV(report)))
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(complianceReportToPrintableHTML(report)))
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func (a *API) handleTaxInvoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	prefix := "/api/v1/invoices/"
	if !strings.HasPrefix(r.URL.Path, prefix) || !strings.HasSuffix(r.URL.Path, "/tax") {
		writeError(w, http.StatusBadRequest, errors.New("invalid invoice path"))
		return
	}
	transactionID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, prefix), "/tax")
	transactionID = strings.TrimSpace(strings.Trim(transactionID, "/"))
	if transactionID == "" {
		writeError(w, http.StatusBadRequest, errors.New("transaction id required"))
		return
	}

	resp, err := a.service.BuildTaxInvoice(r.Context(), transactionID)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}

	if strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("format")), "html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(resp.HTML))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	date := r.URL.Query().Get("date")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	logs, err := a.service.ListAuditLogs(r.Context(), date, limit)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleCashiers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cashiers := a.auth.ListCashiers()
		writeJSON(w, http.StatusOK, map[string]any{"cashiers": cashiers})
	case http.MethodPost:
		var req domain.CashierCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		cashier, err := a.auth.CreateCashier(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"cashier": cashier})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Enforce CSRF protection for all state-changing requests.
		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func complianceReportToCSV(report domain.ComplianceReport) string {
	lines := []string{
		"section,key,value",
		fmt.Sprintf("summary,shop_id,%s", report.ShopID),
		fmt.Sprintf("summary,window_start,%s", report.WindowStart.Format(time.RFC3339)),
		fmt.Sprintf("summary,window_end,%s", report.WindowEnd.Format(time.RFC3339)),
		fmt.Sprintf("summary,brand,%s", report.Brand),
		fmt.Sprintf("summary,view,%s", report.View),
		fmt.Sprintf("summary,net_sales,%.2f", report.NetSales),
		fmt.Sprintf("summary,total_purchases,%.2f", report.TotalPurchases),
		fmt.Sprintf("summary,net_profit,%.2f", report.NetProfit),
		fmt.Sprintf("summary,margin_percent,%.2f", report.MarginPercent),
		fmt.Sprintf("summary,total_leakage,%.2f", report.TotalLeakage),
	}
	for _, row := range report.ByPart {
		lines = append(lines, fmt.Sprintf("part,%s_profit,%.2f", row.PartNumber, row.Profit))
		lines = append(lines, fmt.Sprintf("part,%s_leakage,%.2f", row.PartNumber, row.Leakage))
	}
	for _, row := range report.ByVendor {
		lines = append(lines, fmt.Sprintf("vendor,%s_invoices,%d", row.Vendor, row.Invoices))
		lines = append(lines, fmt.Sprintf("vendor,%s_leakage,%.2f", row.Vendor, row.Leakage))
	}
	for _, row := range report.ByBrand {
		lines = append(lines, fmt.Sprintf("brand,%s_profit,%.2f", row.Brand, row.Profit))
		lines = append(lines, fmt.Sprintf("brand,%s_leakage,%.2f", row.Brand, row.Leakage))
	}
	return strings.Join(lines, "\n") + "\n"
}

// complianceReportHTMLTmpl renders the printable compliance report. All
// user-controlled fields are auto-escaped by html/template to prevent XSS.
var complianceReportHTMLTmpl = template.Must(template.New("compliance-report").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Compliance Report {{.WindowStart.Format "2006-01-02"}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    h2, h3 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Purchase Compliance Report</h2>
  <p>Shop: {{.ShopID}} | Window: {{.WindowStart.Format "2006-01-02"}} to {{.WindowEnd.Format "2006-01-02"}}{{if .Brand}} | Brand: {{.Brand}}{{end}}</p>
  <p>Net Sales: {{printf "%.2f" .NetSales}} | Purchases: {{printf "%.2f" .TotalPurchases}} | Profit: {{printf "%.2f" .NetProfit}} | Margin: {{printf "%.2f" .MarginPercent}}% | Leakage: {{printf "%.2f" .TotalLeakage}}</p>

  <h3>By Part</h3>
  <table>
    <thead><tr><th>Part</th><th>Name</th><th>Sales</th><th>Cost</th><th>Profit</th><th>Leakage</th></tr></thead>
    <tbody>{{range .ByPart}}<tr><td>{{.PartNumber}}</td><td>{{.Name}}</td><td style="text-align:right;">{{printf "%.2f" .Sales}}</td><td style="text-align:right;">{{printf "%.2f" .Cost}}</td><td style="text-align:right;">{{printf "%.2f" .Profit}}</td><td style="text-align:right;">{{printf "%.2f" .Leakage}}</td></tr>{{end}}</tbody>
  </table>

  <h3>By Vendor</h3>
  <table>
    <thead><tr><th>Vendor</th><th>Invoices</th><th>Cost</th><th>Leakage</th></tr></thead>
    <tbody>{{range .ByVendor}}<tr><td>{{.Vendor}}</td><td style="text-align:right;">{{.Invoices}}</td><td style="text-align:right;">{{printf "%.2f" .Cost}}</td><td style="text-align:right;">{{printf "%.2f" .Leakage}}</td></tr>{{end}}</tbody>
  </table>

  <h3>By Brand</h3>
  <table>
    <thead><tr><th>Brand</th><th>Sales</th><th>Cost</th><th>Profit</th><th>Leakage</th></tr></thead>
    <tbody>{{range .ByBrand}}<tr><td>{{.Brand}}</td><td style="text-align:right;">{{printf "%.2f" .Sales}}</td><td style="text-align:right;">{{printf "%.2f" .Cost}}</td><td style="text-align:right;">{{printf "%.2f" .Profit}}</td><td style="text-align:right;">{{printf "%.2f" .Leakage}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

func complianceReportToPrintableHTML(report domain.ComplianceReport) string {
	var buf bytes.Buffer
	if err := complianceReportHTMLTmpl.Execute(&buf, report); err != nil {
		// Fallback: return a plain-text error page rather than leaking internal details.
		return "<!doctype html><html><body><p>Report rendering error.</p></body></html>"
	}
	return buf.String()
}

// parseTimeParam accepts either a bare date (2006-01-02) or RFC3339.
func parseTimeParam(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	if parsed, err := time.Parse("2006-01-02", trimmed); err == nil {
		return parsed.UTC(), true
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return parsed.UTC(), true
	}
	return time.Time{}, false
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// For 5xx responses, return a generic message to avoid leaking internal
	// implementation details (stack traces, SQL errors, file paths, etc.).
	// 4xx responses are user-facing so we return the original error message.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
