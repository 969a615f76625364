package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dmehra2102/qr-order-flow/internal/catalog/application"
	"github.com/dmehra2102/qr-order-flow/internal/catalog/domain"
	identity "github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	authhttp "github.com/dmehra2102/qr-order-flow/internal/identity/infrastructure/http"
	"github.com/dmehra2102/qr-order-flow/pkg/logging"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type menuStore struct {
	mu    sync.Mutex
	items []domain.MenuItem
}

func (m *menuStore) Menu(_ context.Context, shopID string, state domain.ItemState) ([]domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out, known := []domain.MenuItem{}, false
	for _, it := range m.items {
		if it.ShopID != shopID {
			continue
		}
		known = true
		if state == "" || it.State == state {
			out = append(out, it)
		}
	}
	if !known {
		return nil, domain.ErrShopNotFound
	}
	return out, nil
}

func (m *menuStore) Upsert(_ context.Context, item domain.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
	return nil
}

func (m *menuStore) Update(_ context.Context, item domain.MenuItem) (domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.items {
		if it.ID == item.ID && it.ShopID == item.ShopID {
			m.items[i] = item
			return item, nil
		}
	}
	return domain.MenuItem{}, domain.ErrItemNotFound
}

func (m *menuStore) Deactivate(_ context.Context, shopID, itemID string) (domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.items {
		if it.ID == itemID && it.ShopID == shopID {
			m.items[i].State = domain.ItemInactive
			return m.items[i], nil
		}
	}
	return domain.MenuItem{}, domain.ErrItemNotFound
}

var (
	owner    = identity.Actor{Role: identity.RoleShop, ID: "owner-1", ShopID: "shop-1"}
	rival    = identity.Actor{Role: identity.RoleShop, ID: "owner-2", ShopID: "shop-2"}
	customer = identity.Actor{Role: identity.RoleCustomer, ID: "cust-1", ShopID: "shop-1", SlipID: "slip-1"}
)

func newRouter(store *menuStore) http.Handler {
	h := NewHandler(logging.Discard(), application.NewService(logging.Discard(), store))
	r := chi.NewRouter()
	r.Route("/shops/{shopID}", h.Mount)
	return r
}

func do(t *testing.T, h http.Handler, actor identity.Actor, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(authhttp.WithActor(req.Context(), actor))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func seeded() *menuStore {
	return &menuStore{items: []domain.MenuItem{
		{ID: "a", ShopID: "shop-1", Name: "Idli", Price: decimal.NewFromInt(50), State: domain.ItemActive},
		{ID: "b", ShopID: "shop-1", Name: "Pongal", Price: decimal.NewFromInt(70), State: domain.ItemInactive},
	}}
}

func TestGetMenu(t *testing.T) {
	h := newRouter(seeded())

	w := do(t, h, customer, http.MethodGet, "/shops/shop-1/menu", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		ShopID string            `json:"shopId"`
		Items  []domain.MenuItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "shop-1", body.ShopID)
	require.Len(t, body.Items, 1, "customers only see active items")
	assert.Equal(t, "Idli", body.Items[0].Name)
	assert.Contains(t, w.Body.String(), `"price":"50"`)

	w = do(t, h, owner, http.MethodGet, "/shops/shop-1/menu?itemState=all", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Pongal")

	w = do(t, h, customer, http.MethodGet, "/shops/shop-1/menu?itemState=sold-out", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, customer, http.MethodGet, "/shops/other/menu", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"shop has no menu","retryable":false}`, w.Body.String())
}

func TestManageMenu(t *testing.T) {
	store := seeded()
	h := newRouter(store)

	w := do(t, h, owner, http.MethodPost, "/shops/shop-1/menu", `{"name":"Vada","price":"30"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created domain.MenuItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "shop-1", created.ShopID)
	assert.Equal(t, domain.ItemActive, created.State)

	w = do(t, h, owner, http.MethodPut, "/shops/shop-1/menu/"+created.ID, `{"name":"Medu Vada","price":"35"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Medu Vada"`)

	w = do(t, h, owner, http.MethodDelete, "/shops/shop-1/menu/a", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"inactive"`)

	w = do(t, h, customer, http.MethodGet, "/shops/shop-1/menu", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Idli")
	assert.Contains(t, w.Body.String(), "Medu Vada")
}

func TestManageMenu_Errors(t *testing.T) {
	h := newRouter(seeded())

	tests := []struct {
		name   string
		actor  identity.Actor
		method string
		path   string
		body   string
		want   int
	}{
		{"anonymous", identity.Actor{}, http.MethodPost, "/shops/shop-1/menu", `{"name":"Vada","price":"30"}`, http.StatusUnauthorized},
		{"customer", customer, http.MethodPost, "/shops/shop-1/menu", `{"name":"Vada","price":"30"}`, http.StatusForbidden},
		{"other shop", rival, http.MethodDelete, "/shops/shop-1/menu/a", "", http.StatusForbidden},
		{"bad body", owner, http.MethodPost, "/shops/shop-1/menu", `{`, http.StatusBadRequest},
		{"negative price", owner, http.MethodPost, "/shops/shop-1/menu", `{"name":"Vada","price":"-1"}`, http.StatusBadRequest},
		{"unknown item", owner, http.MethodPut, "/shops/shop-1/menu/zzz", `{"name":"Vada","price":"30"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.actor, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
