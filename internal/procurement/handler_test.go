package procurement

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestProcurementHandlers(t *testing.T) {
	svc, _ := newTestService()
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes(r)

	post := func(path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
		return rec
	}

	rec := post("/procurement/purchase-requests", `{"budget_id":"BUD0000AAAA","requestor_ldap":"ann","amount":"45.10"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = post("/procurement/purchase-orders", `{"budget_id":"BUD0000AAAA","requestor_ldap":"ann","po_number":"PO-9","po_line_number":1,"purchase_item":"Monitor","amount":"300"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = post("/procurement/receipts", `{"po_number":"PO-9","po_line_number":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Budget BudgetTotals `json:"budget"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "300.00", out.Budget.ReceiptAmount.StringFixed(2))
	require.Equal(t, "45.10", out.Budget.PRAmount.StringFixed(2))

	rec = post("/procurement/receipts", `{"po_number":"PO-9"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = post("/procurement/purchase-requests", `{"budget_id":"BUD0000BBBB","requestor_ldap":"ann","amount":"5"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/procurement/budgets/bud0000aaaa", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var ledger Ledger
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ledger))
	require.Len(t, ledger.Requests, 1)
	require.Len(t, ledger.Orders, 1)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/procurement/budgets/BUD404", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
