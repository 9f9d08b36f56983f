package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"polyscout/internal/config"
	"polyscout/internal/models"
	"polyscout/internal/session"
	"polyscout/internal/settings"
)

type stubRepo struct {
	settings map[int64]*models.ChatSettings
	orders   map[int64][]models.OrderRecord
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		settings: map[int64]*models.ChatSettings{},
		orders:   map[int64][]models.OrderRecord{},
	}
}

func (r *stubRepo) GetChatSettings(_ context.Context, chatID int64) (*models.ChatSettings, error) {
	return r.settings[chatID], nil
}

func (r *stubRepo) UpsertChatSettings(_ context.Context, s *models.ChatSettings) error {
	r.settings[s.ChatID] = s
	return nil
}

func (r *stubRepo) CreateOrderRecord(_ context.Context, rec *models.OrderRecord) error {
	r.orders[rec.ChatID] = append(r.orders[rec.ChatID], *rec)
	return nil
}

func (r *stubRepo) ListOrderRecords(_ context.Context, chatID int64, limit int) ([]models.OrderRecord, error) {
	recs := r.orders[chatID]
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func newStatusRouter(repo *stubRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	h := &StatusHandler{
		Registry: session.NewRegistry(session.ScanDeps{}, session.MonitorDeps{}),
		Settings: &settings.Store{Repo: repo, Defaults: config.ScanConfig{}},
		Repo:     repo,
	}
	h.Register(engine)
	return engine
}

func TestStatusEndpoint(t *testing.T) {
	repo := newStubRepo()
	repo.settings[42] = &models.ChatSettings{ChatID: 42, PriceThreshold: 0.02, OrderSize: 50}
	engine := newStatusRouter(repo)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status/42", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Code int `json:"code"`
		Data struct {
			Settings       map[string]any `json:"settings"`
			MonitorRunning bool           `json:"monitor_running"`
			Scan           map[string]any `json:"scan"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Code != 0 {
		t.Fatalf("code = %d", body.Code)
	}
	if got := body.Data.Settings["price_threshold"]; got != 0.02 {
		t.Fatalf("price_threshold = %v", got)
	}
	if got := body.Data.Settings["order_size"]; got != 50.0 {
		t.Fatalf("order_size = %v", got)
	}
	if body.Data.MonitorRunning {
		t.Fatal("monitor should not be running")
	}
	if body.Data.Scan != nil {
		t.Fatalf("no scan session expected, got %v", body.Data.Scan)
	}
}

func TestStatusEndpointBadChatID(t *testing.T) {
	engine := newStatusRouter(newStubRepo())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status/not-a-number", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestOrdersEndpoint(t *testing.T) {
	repo := newStubRepo()
	for i := 0; i < 3; i++ {
		repo.orders[7] = append(repo.orders[7], models.OrderRecord{
			ChatID: 7,
			Status: models.OrderStatusPlaced,
			Price:  decimal.NewFromFloat(0.004),
			Size:   decimal.NewFromInt(100),
		})
	}
	engine := newStatusRouter(repo)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/orders/7?limit=2", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data []models.OrderRecord `json:"data"`
		Meta map[string]any       `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Data) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(body.Data))
	}
	if body.Meta["count"] != 2.0 {
		t.Fatalf("meta count = %v", body.Meta["count"])
	}
}
