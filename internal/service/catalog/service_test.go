package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/trace-api/internal/model"
	apperrors "github.com/jwalitptl/trace-api/pkg/errors"
)

type fakeOrgRepo struct {
	orgs map[uuid.UUID]*model.Organization
	gets int
}

func (f *fakeOrgRepo) Create(ctx context.Context, org *model.Organization) error {
	org.ID = uuid.New()
	f.orgs[org.ID] = org
	return nil
}

func (f *fakeOrgRepo) Get(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	f.gets++
	org, ok := f.orgs[id]
	if !ok {
		return nil, apperrors.NotFound("organization", nil)
	}
	return org, nil
}

func (f *fakeOrgRepo) List(ctx context.Context) ([]*model.Organization, error) {
	var out []*model.Organization
	for _, o := range f.orgs {
		out = append(out, o)
	}
	return out, nil
}

type fakeProductRepo struct {
	products map[uuid.UUID]*model.Product
}

func (f *fakeProductRepo) Create(ctx context.Context, product *model.Product) error {
	product.ID = uuid.New()
	product.IsActive = true
	f.products[product.ID] = product
	return nil
}

func (f *fakeProductRepo) Get(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", nil)
	}
	return p, nil
}

func (f *fakeProductRepo) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*model.Product, error) {
	var out []*model.Product
	for _, p := range f.products {
		if p.OrganizationID == orgID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProductRepo) Deactivate(ctx context.Context, id uuid.UUID, reason model.DeactivationReason) error {
	p := f.products[id]
	p.IsActive = false
	p.DeactivationReason = &reason
	return nil
}

type fakeLotRepo struct {
	lots map[uuid.UUID]*model.Lot
}

func (f *fakeLotRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, lot *model.Lot) error {
	return nil
}

func (f *fakeLotRepo) Get(ctx context.Context, id uuid.UUID) (*model.Lot, error) {
	l, ok := f.lots[id]
	if !ok {
		return nil, apperrors.NotFound("lot", nil)
	}
	return l, nil
}

func (f *fakeLotRepo) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*model.Lot, error) {
	return nil, nil
}

func (f *fakeLotRepo) ListInventory(ctx context.Context, orgID uuid.UUID) ([]*model.InventoryLine, error) {
	return nil, nil
}

func (f *fakeLotRepo) ListExpiredStock(ctx context.Context, orgID uuid.UUID, asOf time.Time) ([]*model.InventoryLine, error) {
	return nil, nil
}

type fakeCatalogCodeRepo struct {
	counts map[uuid.UUID]map[model.CodeStatus]int
}

func (f *fakeCatalogCodeRepo) BulkCreateTx(ctx context.Context, tx *sqlx.Tx, codes []*model.VirtualCode) error {
	return nil
}

func (f *fakeCatalogCodeRepo) Get(ctx context.Context, id uuid.UUID) (*model.VirtualCode, error) {
	return nil, apperrors.NotFound("code", nil)
}

func (f *fakeCatalogCodeRepo) GetByCode(ctx context.Context, code string) (*model.VirtualCode, error) {
	return nil, apperrors.NotFound("code", nil)
}

func (f *fakeCatalogCodeRepo) ListLotStockTx(ctx context.Context, tx *sqlx.Tx, orgID, productID uuid.UUID) ([]*model.LotStock, error) {
	return nil, nil
}

func (f *fakeCatalogCodeRepo) LockAvailableTx(ctx context.Context, tx *sqlx.Tx, orgID, lotID uuid.UUID, limit int) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeCatalogCodeRepo) LockByIDsTx(ctx context.Context, tx *sqlx.Tx, ids []uuid.UUID) ([]*model.VirtualCode, error) {
	return nil, nil
}

func (f *fakeCatalogCodeRepo) TransferTx(ctx context.Context, tx *sqlx.Tx, ids []uuid.UUID, status model.CodeStatus, owner model.Owner) error {
	return nil
}

func (f *fakeCatalogCodeRepo) CountByLotStatus(ctx context.Context, lotID uuid.UUID) (map[model.CodeStatus]int, error) {
	return f.counts[lotID], nil
}

func newFixture() (*Service, *fakeOrgRepo, *fakeProductRepo, *fakeLotRepo, *fakeCatalogCodeRepo) {
	orgs := &fakeOrgRepo{orgs: make(map[uuid.UUID]*model.Organization)}
	products := &fakeProductRepo{products: make(map[uuid.UUID]*model.Product)}
	lots := &fakeLotRepo{lots: make(map[uuid.UUID]*model.Lot)}
	codes := &fakeCatalogCodeRepo{counts: make(map[uuid.UUID]map[model.CodeStatus]int)}
	return NewService(orgs, products, lots, codes), orgs, products, lots, codes
}

func TestRegisterOrganizationStartsPending(t *testing.T) {
	svc, _, _, _, _ := newFixture()

	org, err := svc.RegisterOrganization(context.Background(), &model.RegisterOrganizationRequest{
		Name:         "Meridian Devices",
		Type:         model.OrgTypeManufacturer,
		ContactEmail: "ops@meridian.example",
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrgStatusPendingApproval, org.Status)
	assert.NotEqual(t, uuid.Nil, org.ID)
}

func TestGetOrganizationCachesReads(t *testing.T) {
	svc, orgs, _, _, _ := newFixture()
	org := &model.Organization{Name: "Meridian Devices", Type: model.OrgTypeManufacturer}
	require.NoError(t, orgs.Create(context.Background(), org))

	for i := 0; i < 3; i++ {
		got, err := svc.GetOrganization(context.Background(), org.ID)
		require.NoError(t, err)
		assert.Equal(t, org.Name, got.Name)
	}
	assert.Equal(t, 1, orgs.gets)
}

func TestCreateProductManufacturerOnly(t *testing.T) {
	svc, _, _, _, _ := newFixture()
	req := &model.CreateProductRequest{UDIDI: "00841234567890", ModelName: "Stent X1"}

	_, err := svc.CreateProduct(context.Background(),
		model.Actor{OrganizationID: uuid.New(), Type: model.OrgTypeDistributor}, req)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	mfg := model.Actor{OrganizationID: uuid.New(), Type: model.OrgTypeManufacturer}
	product, err := svc.CreateProduct(context.Background(), mfg, req)
	require.NoError(t, err)
	assert.Equal(t, mfg.OrganizationID, product.OrganizationID)
	assert.True(t, product.IsActive)
}

func TestDeactivateProductOwnership(t *testing.T) {
	svc, _, products, _, _ := newFixture()
	owner := uuid.New()
	p := &model.Product{OrganizationID: owner}
	require.NoError(t, products.Create(context.Background(), p))

	err := svc.DeactivateProduct(context.Background(),
		model.Actor{OrganizationID: uuid.New(), Type: model.OrgTypeManufacturer},
		p.ID, model.DeactivationSafetyIssue)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	assert.True(t, p.IsActive)

	require.NoError(t, svc.DeactivateProduct(context.Background(),
		model.Actor{OrganizationID: owner, Type: model.OrgTypeManufacturer},
		p.ID, model.DeactivationSafetyIssue))
	assert.False(t, p.IsActive)
	require.NotNil(t, p.DeactivationReason)
	assert.Equal(t, model.DeactivationSafetyIssue, *p.DeactivationReason)
}

func TestDeactivateProductAdminOverride(t *testing.T) {
	svc, _, products, _, _ := newFixture()
	p := &model.Product{OrganizationID: uuid.New()}
	require.NoError(t, products.Create(context.Background(), p))

	require.NoError(t, svc.DeactivateProduct(context.Background(),
		model.Actor{OrganizationID: uuid.New(), Type: model.OrgTypeAdmin},
		p.ID, model.DeactivationDiscontinued))
	assert.False(t, p.IsActive)
}

func TestDeactivateEvictsCachedProduct(t *testing.T) {
	svc, _, products, _, _ := newFixture()
	owner := uuid.New()
	p := &model.Product{OrganizationID: owner}
	require.NoError(t, products.Create(context.Background(), p))

	// Warm the cache, then deactivate and re-read.
	_, err := svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	require.NoError(t, svc.DeactivateProduct(context.Background(),
		model.Actor{OrganizationID: owner, Type: model.OrgTypeManufacturer},
		p.ID, model.DeactivationQualityIssue))

	got, err := svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestLotStatusUnknownLot(t *testing.T) {
	svc, _, _, _, _ := newFixture()
	_, err := svc.LotStatus(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestLotStatusCounts(t *testing.T) {
	svc, _, _, lots, codes := newFixture()
	lot := &model.Lot{Quantity: 100}
	lot.ID = uuid.New()
	lots.lots[lot.ID] = lot
	codes.counts[lot.ID] = map[model.CodeStatus]int{
		model.CodeStatusInStock:  70,
		model.CodeStatusUsed:     25,
		model.CodeStatusDisposed: 5,
	}

	counts, err := svc.LotStatus(context.Background(), lot.ID)
	require.NoError(t, err)

	total := 0
	for _, n := range counts {
		total += n
	}
	assert.Equal(t, lot.Quantity, total)
}
