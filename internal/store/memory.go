package store

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/merchkit/merchkit/internal/errors"
	"github.com/merchkit/merchkit/internal/models"
)

// InMemoryStore implements Store using in-memory storage
type InMemoryStore struct {
	mu            sync.RWMutex
	stores        map[string]models.Store
	products      map[string]models.Product
	variants      map[string]models.Variant
	storeProducts map[string]models.StoreProduct // key: storeID|productID
	storePrices   map[string]models.StorePrice   // key: storeID|productID|variantID
	accounts      map[string]models.ConnectedAccount // key: ownerID
	pending       map[string]models.PendingOrder     // key: sessionID
	orders        map[string]models.Order            // key: sessionID
	apiKeys       map[string]models.APIKey           // key: keyPrefix
}

// NewInMemoryStore creates a new in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		stores:        make(map[string]models.Store),
		products:      make(map[string]models.Product),
		variants:      make(map[string]models.Variant),
		storeProducts: make(map[string]models.StoreProduct),
		storePrices:   make(map[string]models.StorePrice),
		accounts:      make(map[string]models.ConnectedAccount),
		pending:       make(map[string]models.PendingOrder),
		orders:        make(map[string]models.Order),
		apiKeys:       make(map[string]models.APIKey),
	}
}

func pairKey(a, b string) string      { return a + "|" + b }
func tripleKey(a, b, c string) string { return a + "|" + b + "|" + c }

func (s *InMemoryStore) GetStore(ctx context.Context, id string) (*models.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.stores[id]; ok {
		return &st, nil
	}
	return nil, nil
}

func (s *InMemoryStore) GetStoreBySlug(ctx context.Context, slug string) (*models.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.stores {
		if st.Slug == slug {
			st := st
			return &st, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.products[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *InMemoryStore) GetVariant(ctx context.Context, id string) (*models.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.variants[id]; ok {
		return &v, nil
	}
	return nil, nil
}

func (s *InMemoryStore) GetDefaultVariant(ctx context.Context, productID string) (*models.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.Variant
	for _, v := range s.variants {
		if v.ProductID != productID {
			continue
		}
		v := v
		// Stable choice: lowest variant id wins
		if found == nil || v.ID < found.ID {
			found = &v
		}
	}
	return found, nil
}

func (s *InMemoryStore) ListVariants(ctx context.Context, productID string) ([]models.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var variants []models.Variant
	for _, v := range s.variants {
		if v.ProductID == productID {
			variants = append(variants, v)
		}
	}
	sort.Slice(variants, func(i, j int) bool { return variants[i].ID < variants[j].ID })
	return variants, nil
}

func (s *InMemoryStore) GetStoreProduct(ctx context.Context, storeID, productID string) (*models.StoreProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sp, ok := s.storeProducts[pairKey(storeID, productID)]; ok {
		return &sp, nil
	}
	return nil, nil
}

func (s *InMemoryStore) ListStoreProducts(ctx context.Context, storeID string) ([]models.StoreProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []models.StoreProduct
	for _, sp := range s.storeProducts {
		if sp.StoreID == storeID {
			result = append(result, sp)
		}
	}
	sortStoreProducts(result)
	return result, nil
}

func (s *InMemoryStore) GetStorePrice(ctx context.Context, storeID, productID, variantID string) (*models.StorePrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sp, ok := s.storePrices[tripleKey(storeID, productID, variantID)]; ok {
		return &sp, nil
	}
	return nil, nil
}

func (s *InMemoryStore) ListStorePrices(ctx context.Context, storeID string) ([]models.StorePrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []models.StorePrice
	for _, sp := range s.storePrices {
		if sp.StoreID == storeID {
			result = append(result, sp)
		}
	}
	return result, nil
}

func (s *InMemoryStore) UpsertStorePrice(ctx context.Context, price models.StorePrice) error {
	if err := price.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	price.UpdatedAt = time.Now().UTC()
	s.storePrices[tripleKey(price.StoreID, price.ProductID, price.VariantID)] = price
	return nil
}

func (s *InMemoryStore) UpsertStore(ctx context.Context, st models.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores[st.ID] = st
	return nil
}

func (s *InMemoryStore) UpsertProduct(ctx context.Context, p models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

func (s *InMemoryStore) UpsertVariant(ctx context.Context, v models.Variant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants[v.ID] = v
	return nil
}

func (s *InMemoryStore) UpsertStoreProduct(ctx context.Context, sp models.StoreProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeProducts[pairKey(sp.StoreID, sp.ProductID)] = sp
	return nil
}

func (s *InMemoryStore) GetAccountByOwner(ctx context.Context, ownerID string) (*models.ConnectedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.accounts[ownerID]; ok {
		return &a, nil
	}
	return nil, nil
}

func (s *InMemoryStore) GetAccountByStripeID(ctx context.Context, stripeAccountID string) (*models.ConnectedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.StripeAccountID == stripeAccountID {
			a := a
			return &a, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) UpsertAccount(ctx context.Context, a models.ConnectedAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.UpdatedAt = time.Now().UTC()
	s.accounts[a.OwnerID] = a
	return nil
}

func (s *InMemoryStore) CreatePendingOrder(ctx context.Context, po models.PendingOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pending[po.SessionID]; exists {
		return apperrors.ErrConflict
	}
	s.pending[po.SessionID] = po
	return nil
}

func (s *InMemoryStore) GetPendingOrderBySession(ctx context.Context, sessionID string) (*models.PendingOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if po, ok := s.pending[sessionID]; ok {
		return &po, nil
	}
	return nil, nil
}

func (s *InMemoryStore) ReapPendingOrders(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reaped := 0
	for sid, po := range s.pending {
		if limit > 0 && reaped >= limit {
			break
		}
		if po.CreatedAt.Before(cutoff) {
			delete(s.pending, sid)
			reaped++
		}
	}
	return reaped, nil
}

func (s *InMemoryStore) GetOrderBySession(ctx context.Context, sessionID string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if o, ok := s.orders[sessionID]; ok {
		return &o, nil
	}
	return nil, nil
}

// PromoteOrder inserts the order first and only then drops the pending
// row, so a crash in between leaves the pending order as a harmless
// duplicate-detection fallback rather than a lost sale.
func (s *InMemoryStore) PromoteOrder(ctx context.Context, o models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.SessionID]; exists {
		return apperrors.ErrConflict
	}
	s.orders[o.SessionID] = o
	delete(s.pending, o.SessionID)
	return nil
}

func (s *InMemoryStore) MarkOrderFailed(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[sessionID]
	if !ok {
		return false, nil
	}
	o.Status = models.OrderStatusFailed
	o.UpdatedAt = time.Now().UTC()
	s.orders[sessionID] = o
	return true, nil
}

func (s *InMemoryStore) CreateAPIKey(ctx context.Context, k models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apiKeys[k.KeyPrefix]; exists {
		return apperrors.ErrConflict
	}
	s.apiKeys[k.KeyPrefix] = k
	return nil
}

func (s *InMemoryStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k, ok := s.apiKeys[prefix]; ok {
		return &k, nil
	}
	return nil, nil
}

func (s *InMemoryStore) ListAPIKeysByOwner(ctx context.Context, ownerID string) ([]models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []models.APIKey
	for _, k := range s.apiKeys {
		if k.OwnerID == ownerID {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.Before(keys[j].CreatedAt) })
	return keys, nil
}

func (s *InMemoryStore) RevokeAPIKey(ctx context.Context, prefix string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.apiKeys[prefix]
	if !ok {
		return false, nil
	}
	k.Status = models.APIKeyStatusRevoked
	s.apiKeys[prefix] = k
	return true, nil
}

// Health always returns nil for in-memory store
func (s *InMemoryStore) Health(ctx context.Context) error {
	return nil
}

func sortStoreProducts(sps []models.StoreProduct) {
	sort.Slice(sps, func(i, j int) bool {
		return sps[i].Position < sps[j].Position
	})
}
