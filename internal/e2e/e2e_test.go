package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/tally/internal/cache"
	"github.com/smallbiznis/tally/internal/clock"
	"github.com/smallbiznis/tally/internal/config"
	loyaltydomain "github.com/smallbiznis/tally/internal/loyalty/domain"
	loyaltyrepository "github.com/smallbiznis/tally/internal/loyalty/repository"
	loyaltyservice "github.com/smallbiznis/tally/internal/loyalty/service"
	"github.com/smallbiznis/tally/internal/providers/pdf"
	receiptdomain "github.com/smallbiznis/tally/internal/receipt/domain"
	receiptrepository "github.com/smallbiznis/tally/internal/receipt/repository"
	receiptservice "github.com/smallbiznis/tally/internal/receipt/service"
	"github.com/smallbiznis/tally/internal/server"
	taxdomain "github.com/smallbiznis/tally/internal/tax/domain"
	taxrepository "github.com/smallbiznis/tally/internal/tax/repository"
	taxservice "github.com/smallbiznis/tally/internal/tax/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	orgID     = "6001"
	branchID  = "6002"
	cashierID = "6003"
)

// newTestServer wires the full HTTP stack against an in-memory database,
// bypassing the fx container.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&receiptdomain.Receipt{},
		&receiptdomain.ReceiptLine{},
		&receiptdomain.ReceiptPayment{},
		&loyaltydomain.LoyaltyRule{},
		&loyaltydomain.LoyaltyMilestone{},
		&loyaltydomain.LoyaltyAccount{},
		&loyaltydomain.LoyaltyRedemption{},
		&loyaltydomain.MilestoneAward{},
		&taxdomain.TaxPolicy{},
	))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	log := zap.NewNop()
	resolverCache := cache.NewResolverCache()

	taxRepo := taxrepository.NewRepository(conn)
	rates := taxservice.NewResolver(taxservice.ResolverParams{
		Repository: taxRepo,
		Cache:      resolverCache,
		Policy:     &config.PolicyHolder{},
	})
	taxSvc := taxservice.New(taxservice.Params{
		Log:   log,
		GenID: node,
		Repo:  taxRepo,
		Cache: resolverCache,
	})

	loyaltySvc := loyaltyservice.New(loyaltyservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Repo:  loyaltyrepository.NewRepository(),
		Cache: resolverCache,
	})

	receiptSvc := receiptservice.New(receiptservice.Params{
		DB:      conn,
		Log:     log,
		GenID:   node,
		Repo:    receiptrepository.NewRepository(),
		Rates:   rates,
		Loyalty: loyaltySvc,
		Clock:   clock.NewSystemClock(),
	})

	engine := server.NewEngine(log)
	server.NewServer(server.ServerParams{
		Gin:        engine,
		Cfg:        config.Config{},
		DB:         conn,
		GenID:      node,
		Log:        log,
		ReceiptSvc: receiptSvc,
		LoyaltySvc: loyaltySvc,
		TaxSvc:     taxSvc,
		PDFSvc:     pdf.NewProvider(),
	})

	ts := httptest.NewServer(engine)
	t.Cleanup(ts.Close)
	return ts
}

// decodeData unwraps the {"data": ...} envelope every handler responds with.
func decodeData(t *testing.T, raw []byte, out any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(server.HeaderOrg, orgID)
	req.Header.Set(server.HeaderBranch, branchID)
	req.Header.Set(server.HeaderCashier, cashierID)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, raw
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReceiptLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, http.MethodPost, "/v1/tax-policies", map[string]any{
		"method":   "card",
		"tax_mode": "exclusive",
		"rate":     0.05,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	compute := map[string]any{
		"currency": "PHP",
		"lines": []map[string]any{
			{"product_id": "101", "description": "Espresso", "unit_price": "100.00", "quantity": 2},
		},
		"payments": []map[string]any{
			{"method": "card", "amount": "210.00"},
		},
	}
	resp, raw := doJSON(t, ts, http.MethodPost, "/v1/receipts/compute", compute)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var computed struct {
		SubtotalAmount   int64  `json:"subtotal_amount"`
		TaxAmount        int64  `json:"tax_amount"`
		GrandTotalAmount int64  `json:"grand_total_amount"`
		PaymentStatus    string `json:"payment_status"`
	}
	decodeData(t, raw, &computed)
	assert.Equal(t, int64(20000), computed.SubtotalAmount)
	assert.Equal(t, int64(1000), computed.TaxAmount)
	assert.Equal(t, int64(21000), computed.GrandTotalAmount)
	assert.Equal(t, "completed", computed.PaymentStatus)

	resp, raw = doJSON(t, ts, http.MethodPost, "/v1/receipts", compute)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var submitted struct {
		ID               string `json:"id"`
		GrandTotalAmount int64  `json:"grand_total_amount"`
		PaymentStatus    string `json:"payment_status"`
	}
	decodeData(t, raw, &submitted)
	require.NotEmpty(t, submitted.ID)
	assert.Equal(t, int64(21000), submitted.GrandTotalAmount)

	resp, raw = doJSON(t, ts, http.MethodGet, "/v1/receipts/"+submitted.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched struct {
		ID               string `json:"id"`
		GrandTotalAmount int64  `json:"grand_total_amount"`
		PaymentStatus    string `json:"payment_status"`
	}
	decodeData(t, raw, &fetched)
	assert.Equal(t, submitted.ID, fetched.ID)
	assert.Equal(t, "completed", fetched.PaymentStatus)

	resp, raw = doJSON(t, ts, http.MethodGet, "/v1/receipts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Data []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &listed))
	assert.Len(t, listed.Data, 1)
}

func TestLoyaltyRedemptionOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	customerID := "9107"

	resp, raw := doJSON(t, ts, http.MethodPost, "/v1/loyalty/rules", map[string]any{
		"name":                     "standard",
		"currency":                 "PHP",
		"redeem_unit_points":       1000,
		"cashback_per_redeem_unit": 10000,
		"spend_unit_amount":        1000,
		"points_per_spend_unit":    1,
		"sign_up_bonus_points":     2500,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var rule struct {
		ID string `json:"id"`
	}
	decodeData(t, raw, &rule)

	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/loyalty/rules/"+rule.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw = doJSON(t, ts, http.MethodPost, "/v1/loyalty/accounts", map[string]any{
		"customer_id": customerID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var account struct {
		PointsBalance int64 `json:"points_balance"`
	}
	decodeData(t, raw, &account)
	assert.Equal(t, int64(2500), account.PointsBalance)

	// Double enrollment conflicts.
	resp, raw = doJSON(t, ts, http.MethodPost, "/v1/loyalty/accounts", map[string]any{
		"customer_id": customerID,
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var conflict struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &conflict))
	assert.Equal(t, "conflict", conflict.Error.Type)
	assert.Equal(t, "account_exists", conflict.Error.Message)

	// 2500 points redeem as two whole units of 1000 for 200.00 off.
	resp, raw = doJSON(t, ts, http.MethodPost, "/v1/receipts", map[string]any{
		"currency": "PHP",
		"lines": []map[string]any{
			{"product_id": "101", "description": "Set menu", "unit_price": "300.00", "quantity": 1},
		},
		"customer_id": customerID,
		"points_used": 2000,
		"payments": []map[string]any{
			{"method": "cash", "amount": "116.00"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var submitted struct {
		LoyaltyDiscountAmount int64  `json:"loyalty_discount_amount"`
		LoyaltyPointsUsed     int64  `json:"loyalty_points_used"`
		LoyaltyPointsEarned   int64  `json:"loyalty_points_earned"`
		TaxAmount             int64  `json:"tax_amount"`
		GrandTotalAmount      int64  `json:"grand_total_amount"`
		PaymentStatus         string `json:"payment_status"`
	}
	decodeData(t, raw, &submitted)
	assert.Equal(t, int64(20000), submitted.LoyaltyDiscountAmount)
	assert.Equal(t, int64(2000), submitted.LoyaltyPointsUsed)
	// 100.00 taxable at the default cash rate of 16%.
	assert.Equal(t, int64(1600), submitted.TaxAmount)
	assert.Equal(t, int64(11600), submitted.GrandTotalAmount)
	assert.Equal(t, "completed", submitted.PaymentStatus)
	assert.Equal(t, int64(10), submitted.LoyaltyPointsEarned)

	resp, raw = doJSON(t, ts, http.MethodGet, "/v1/loyalty/accounts/"+customerID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, raw, &account)
	assert.Equal(t, int64(510), account.PointsBalance)
}

func TestValidationErrorShape(t *testing.T) {
	ts := newTestServer(t)

	resp, raw := doJSON(t, ts, http.MethodPost, "/v1/receipts", map[string]any{
		"currency": "PHP",
		"lines":    []map[string]any{},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var payload struct {
		Error struct {
			Type   string `json:"type"`
			Errors []struct {
				Field string `json:"field"`
				Code  string `json:"code"`
			} `json:"errors"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "validation_error", payload.Error.Type)
	require.NotEmpty(t, payload.Error.Errors)
	assert.Equal(t, "empty_receipt", payload.Error.Errors[0].Code)
}

func TestMissingSessionHeaders(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/receipts", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
