package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/trace-api/internal/model"
	"github.com/jwalitptl/trace-api/internal/repository"
	apperrors "github.com/jwalitptl/trace-api/pkg/errors"
)

const (
	cacheTTL     = 5 * time.Minute
	cacheCleanup = 10 * time.Minute
)

// Service owns the slow-changing reference data: organizations, products,
// lots. Reads are cached; anything that mutates custody lives elsewhere.
type Service struct {
	orgs     repository.OrganizationRepository
	products repository.ProductRepository
	lots     repository.LotRepository
	codes    repository.CodeRepository
	cache    *gocache.Cache
}

func NewService(
	orgs repository.OrganizationRepository,
	products repository.ProductRepository,
	lots repository.LotRepository,
	codes repository.CodeRepository,
) *Service {
	return &Service{
		orgs:     orgs,
		products: products,
		lots:     lots,
		codes:    codes,
		cache:    gocache.New(cacheTTL, cacheCleanup),
	}
}

// RegisterOrganization creates a new organization pending approval. The
// approval workflow collaborator flips the status later.
func (s *Service) RegisterOrganization(ctx context.Context, req *model.RegisterOrganizationRequest) (*model.Organization, error) {
	org := &model.Organization{
		Name:         req.Name,
		Type:         req.Type,
		Status:       model.OrgStatusPendingApproval,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
	}
	if err := s.orgs.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to register organization: %w", err)
	}
	return org, nil
}

func (s *Service) GetOrganization(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	key := "org:" + id.String()
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.Organization), nil
	}

	org, err := s.orgs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, org, gocache.DefaultExpiration)
	return org, nil
}

func (s *Service) ListOrganizations(ctx context.Context) ([]*model.Organization, error) {
	return s.orgs.List(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, actor model.Actor, req *model.CreateProductRequest) (*model.Product, error) {
	if actor.Type != model.OrgTypeManufacturer {
		return nil, apperrors.Forbidden("only manufacturers can create products")
	}

	product := &model.Product{
		OrganizationID: actor.OrganizationID,
		UDIDI:          req.UDIDI,
		ModelName:      req.ModelName,
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	key := "product:" + id.String()
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.Product), nil
	}

	product, err := s.products.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, product, gocache.DefaultExpiration)
	return product, nil
}

func (s *Service) ListProducts(ctx context.Context, orgID uuid.UUID) ([]*model.Product, error) {
	return s.products.ListByOrganization(ctx, orgID)
}

// DeactivateProduct stops new production. Historical allocations and
// ledger rows stay as they are.
func (s *Service) DeactivateProduct(ctx context.Context, actor model.Actor, id uuid.UUID, reason model.DeactivationReason) error {
	product, err := s.products.Get(ctx, id)
	if err != nil {
		return err
	}
	if actor.Type != model.OrgTypeAdmin && product.OrganizationID != actor.OrganizationID {
		return apperrors.Forbidden("product belongs to another organization")
	}

	if err := s.products.Deactivate(ctx, id, reason); err != nil {
		return err
	}
	s.cache.Delete("product:" + id.String())
	return nil
}

func (s *Service) GetLot(ctx context.Context, id uuid.UUID) (*model.Lot, error) {
	return s.lots.Get(ctx, id)
}

func (s *Service) ListLots(ctx context.Context, productID uuid.UUID) ([]*model.Lot, error) {
	return s.lots.ListByProduct(ctx, productID)
}

// LotStatus returns the lot's status partition. The counts always sum to
// the lot quantity; a mismatch means the conservation invariant broke.
func (s *Service) LotStatus(ctx context.Context, lotID uuid.UUID) (map[model.CodeStatus]int, error) {
	if _, err := s.lots.Get(ctx, lotID); err != nil {
		return nil, err
	}
	return s.codes.CountByLotStatus(ctx, lotID)
}

// Inventory returns the organization's remaining stock in FIFO order.
func (s *Service) Inventory(ctx context.Context, orgID uuid.UUID) ([]*model.InventoryLine, error) {
	return s.lots.ListInventory(ctx, orgID)
}

// ExpiredStock lists expired lots still holding in-stock codes, the
// candidates for disposal with reason EXPIRED.
func (s *Service) ExpiredStock(ctx context.Context, orgID uuid.UUID) ([]*model.InventoryLine, error) {
	return s.lots.ListExpiredStock(ctx, orgID, time.Now())
}
