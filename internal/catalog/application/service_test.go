package application

import (
	"context"
	"sync"
	"testing"

	"github.com/dmehra2102/qr-order-flow/internal/catalog/domain"
	identity "github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	"github.com/dmehra2102/qr-order-flow/pkg/logging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memMenu struct {
	mu    sync.Mutex
	items map[string]domain.MenuItem
}

func newMemMenu() *memMenu {
	return &memMenu{items: map[string]domain.MenuItem{}}
}

func (m *memMenu) Menu(_ context.Context, shopID string, state domain.ItemState) ([]domain.MenuItem, error) {
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

func (m *memMenu) Upsert(_ context.Context, item domain.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	return nil
}

func (m *memMenu) Update(_ context.Context, item domain.MenuItem) (domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.items[item.ID]; !ok || old.ShopID != item.ShopID {
		return domain.MenuItem{}, domain.ErrItemNotFound
	}
	m.items[item.ID] = item
	return item, nil
}

func (m *memMenu) Deactivate(_ context.Context, shopID, itemID string) (domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemID]
	if !ok || it.ShopID != shopID {
		return domain.MenuItem{}, domain.ErrItemNotFound
	}
	it.State = domain.ItemInactive
	m.items[itemID] = it
	return it, nil
}

var (
	owner    = identity.Actor{Role: identity.RoleShop, ID: "owner-1", ShopID: "shop-1"}
	rival    = identity.Actor{Role: identity.RoleShop, ID: "owner-2", ShopID: "shop-2"}
	admin    = identity.Actor{Role: identity.RoleAdmin, ID: "admin-1"}
	customer = identity.Actor{Role: identity.RoleCustomer, ID: "cust-1", ShopID: "shop-1", SlipID: "slip-1"}
)

func TestManageMenu(t *testing.T) {
	repo := newMemMenu()
	svc := NewService(logging.Discard(), repo)
	ctx := context.Background()

	dosa, err := svc.AddItem(ctx, owner, "shop-1", ItemInput{Name: "Dosa", Price: decimal.NewFromInt(80)})
	require.NoError(t, err)
	assert.NotEmpty(t, dosa.ID)
	assert.Equal(t, domain.ItemActive, dosa.State)

	upd, err := svc.UpdateItem(ctx, admin, "shop-1", dosa.ID, ItemInput{Name: "Masala Dosa", Price: decimal.NewFromInt(95)})
	require.NoError(t, err)
	assert.Equal(t, "Masala Dosa", upd.Name)

	_, err = svc.DeactivateItem(ctx, owner, "shop-1", dosa.ID)
	require.NoError(t, err)

	active, err := svc.Menu(ctx, "shop-1", domain.ItemActive)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.Menu(ctx, "shop-1", "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.ItemInactive, all[0].State)
}

func TestManageMenu_Rejections(t *testing.T) {
	repo := newMemMenu()
	svc := NewService(logging.Discard(), repo)
	ctx := context.Background()
	in := ItemInput{Name: "Vada", Price: decimal.NewFromInt(30)}

	_, err := svc.AddItem(ctx, identity.Actor{}, "shop-1", in)
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)

	_, err = svc.AddItem(ctx, customer, "shop-1", in)
	assert.ErrorIs(t, err, identity.ErrForbidden)

	_, err = svc.AddItem(ctx, rival, "shop-1", in)
	assert.ErrorIs(t, err, identity.ErrForbidden)

	_, err = svc.AddItem(ctx, owner, "shop-1", ItemInput{Name: "", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidItem)

	_, err = svc.UpdateItem(ctx, owner, "shop-1", "missing", in)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)

	_, err = svc.DeactivateItem(ctx, rival, "shop-1", "missing")
	assert.ErrorIs(t, err, identity.ErrForbidden)

	_, err = svc.Menu(ctx, "shop-1", "sold-out")
	assert.ErrorIs(t, err, domain.ErrInvalidItem)

	assert.Empty(t, repo.items)
}
