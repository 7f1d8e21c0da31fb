package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/trace-api/internal/handler"
	catalogH "github.com/jwalitptl/trace-api/internal/handler/catalog"
	historyH "github.com/jwalitptl/trace-api/internal/handler/history"
	ledgerH "github.com/jwalitptl/trace-api/internal/handler/ledger"
	organizationH "github.com/jwalitptl/trace-api/internal/handler/organization"
	recallH "github.com/jwalitptl/trace-api/internal/handler/recall"
	"github.com/jwalitptl/trace-api/internal/middleware"
	"github.com/jwalitptl/trace-api/internal/model"
	"github.com/jwalitptl/trace-api/internal/router"
	"github.com/jwalitptl/trace-api/internal/service/allocation"
	"github.com/jwalitptl/trace-api/internal/service/catalog"
	"github.com/jwalitptl/trace-api/internal/service/event"
	"github.com/jwalitptl/trace-api/internal/service/history"
	"github.com/jwalitptl/trace-api/internal/service/ledger"
	"github.com/jwalitptl/trace-api/internal/service/recall"
	"github.com/jwalitptl/trace-api/pkg/auth"
	apperrors "github.com/jwalitptl/trace-api/pkg/errors"
	"github.com/jwalitptl/trace-api/pkg/logger"
)

// env holds a fully wired router backed by in-memory repositories, so
// the tests exercise the real middleware chain, binding rules and error
// envelope without a database.
type env struct {
	s      *store
	engine *gin.Engine
	jwt    auth.JWTService
}

func newEnv() *env {
	s := newStore()
	log := logger.NewLogger(&logger.Config{Output: io.Discard})
	codes := fakeCodeRepo{s}

	ledgerSvc := ledger.NewService(ledger.Config{
		TxManager:     fakeTxManager{},
		Organizations: fakeOrgRepo{s},
		Products:      fakeProductRepo{s},
		Lots:          fakeLotRepo{s},
		Codes:         codes,
		Shipments:     fakeShipmentRepo{s},
		Treatments:    fakeTreatmentRepo{s},
		Disposals:     fakeDisposalRepo{s},
		History:       fakeHistoryRepo{s},
		Idempotency:   fakeIdemRepo{s},
		Allocator:     allocation.NewEngine(codes),
		Events:        event.NewService(fakeOutboxRepo{s}),
		Logger:        log,
	})
	recallSvc := recall.NewService(recall.Config{
		TxManager:  fakeTxManager{},
		Codes:      codes,
		Shipments:  fakeShipmentRepo{s},
		Treatments: fakeTreatmentRepo{s},
		History:    fakeHistoryRepo{s},
		Events:     event.NewService(fakeOutboxRepo{s}),
		Logger:     log,
	})
	catalogSvc := catalog.NewService(fakeOrgRepo{s}, fakeProductRepo{s}, fakeLotRepo{s}, codes)
	historySvc := history.NewService(fakeHistoryRepo{s}, codes, fakeShipmentRepo{s}, fakeTreatmentRepo{s}, recall.DefaultWindow)

	jwtSvc := auth.NewJWTService("test-secret", time.Hour)

	r := router.NewRouter(
		middleware.NewAuthMiddleware(jwtSvc),
		organizationH.NewHandler(catalogSvc),
		catalogH.NewHandler(catalogSvc),
		ledgerH.NewHandler(ledgerSvc),
		recallH.NewHandler(recallSvc),
		historyH.NewHandler(historySvc),
		handler.NewHandler(nil),
		router.Config{
			RateLimit:     rate.Inf,
			RateBurst:     1,
			Timeout:       5 * time.Second,
			MetricsPrefix: "trace_test_api",
		},
	)
	r.Setup()

	return &env{s: s, engine: r.Engine(), jwt: jwtSvc}
}

func (e *env) token(t *testing.T, org *model.Organization) string {
	t.Helper()
	tok, err := e.jwt.GenerateToken(org.ID, string(org.Type))
	require.NoError(t, err)
	return tok
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

// request performs an in-process HTTP call. A nil body sends no request
// body at all, matching a client that posts without one.
func (e *env) request(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)

	var resp apiResponse
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	}
	return rec, resp
}

// store is the same in-memory repository stand-in the service tests
// use, shared across every wired service so a flow test can follow
// codes from production through treatment.
type store struct {
	orgs       map[uuid.UUID]*model.Organization
	products   map[uuid.UUID]*model.Product
	lots       map[uuid.UUID]*model.Lot
	codes      map[uuid.UUID]*model.VirtualCode
	shipments  map[uuid.UUID]*model.ShipmentBatch
	treatments map[uuid.UUID]*model.TreatmentRecord
	disposals  map[uuid.UUID]*model.DisposalRecord
	history    []*model.HistoryEvent
	idem       map[string]*model.IdempotencyKey
	outbox     []*model.OutboxEvent
}

func newStore() *store {
	return &store{
		orgs:       make(map[uuid.UUID]*model.Organization),
		products:   make(map[uuid.UUID]*model.Product),
		lots:       make(map[uuid.UUID]*model.Lot),
		codes:      make(map[uuid.UUID]*model.VirtualCode),
		shipments:  make(map[uuid.UUID]*model.ShipmentBatch),
		treatments: make(map[uuid.UUID]*model.TreatmentRecord),
		disposals:  make(map[uuid.UUID]*model.DisposalRecord),
		idem:       make(map[string]*model.IdempotencyKey),
	}
}

func (s *store) addOrg(typ model.OrganizationType, status model.OrganizationStatus) *model.Organization {
	org := &model.Organization{Name: string(typ), Type: typ, Status: status}
	org.ID = uuid.New()
	s.orgs[org.ID] = org
	return org
}

func (s *store) addProduct(orgID uuid.UUID) *model.Product {
	p := &model.Product{OrganizationID: orgID, UDIDI: uuid.NewString(), ModelName: "Stent X", IsActive: true}
	p.ID = uuid.New()
	s.products[p.ID] = p
	return p
}

func (s *store) codesOwnedBy(orgID uuid.UUID, status model.CodeStatus) int {
	owner := model.OrgOwner(orgID)
	n := 0
	for _, c := range s.codes {
		if c.Status == status && c.Owner().Equal(owner) {
			n++
		}
	}
	return n
}

type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type fakeOrgRepo struct{ s *store }

func (f fakeOrgRepo) Create(ctx context.Context, org *model.Organization) error {
	org.ID = uuid.New()
	f.s.orgs[org.ID] = org
	return nil
}

func (f fakeOrgRepo) Get(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	org, ok := f.s.orgs[id]
	if !ok {
		return nil, apperrors.NotFound("organization", nil)
	}
	return org, nil
}

func (f fakeOrgRepo) List(ctx context.Context) ([]*model.Organization, error) {
	var out []*model.Organization
	for _, org := range f.s.orgs {
		out = append(out, org)
	}
	return out, nil
}

type fakeProductRepo struct{ s *store }

func (f fakeProductRepo) Create(ctx context.Context, p *model.Product) error {
	p.ID = uuid.New()
	f.s.products[p.ID] = p
	return nil
}

func (f fakeProductRepo) Get(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p, ok := f.s.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", nil)
	}
	return p, nil
}

func (f fakeProductRepo) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*model.Product, error) {
	var out []*model.Product
	for _, p := range f.s.products {
		if p.OrganizationID == orgID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f fakeProductRepo) Deactivate(ctx context.Context, id uuid.UUID, reason model.DeactivationReason) error {
	p, ok := f.s.products[id]
	if !ok {
		return apperrors.NotFound("product", nil)
	}
	p.IsActive = false
	return nil
}

type fakeLotRepo struct{ s *store }

func (f fakeLotRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, lot *model.Lot) error {
	lot.ID = uuid.New()
	lot.CreatedAt = time.Now()
	f.s.lots[lot.ID] = lot
	return nil
}

func (f fakeLotRepo) Get(ctx context.Context, id uuid.UUID) (*model.Lot, error) {
	lot, ok := f.s.lots[id]
	if !ok {
		return nil, apperrors.NotFound("lot", nil)
	}
	return lot, nil
}

func (f fakeLotRepo) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*model.Lot, error) {
	return nil, nil
}

func (f fakeLotRepo) ListInventory(ctx context.Context, orgID uuid.UUID) ([]*model.InventoryLine, error) {
	return nil, nil
}

func (f fakeLotRepo) ListExpiredStock(ctx context.Context, orgID uuid.UUID, asOf time.Time) ([]*model.InventoryLine, error) {
	return nil, nil
}

type fakeCodeRepo struct{ s *store }

func (f fakeCodeRepo) BulkCreateTx(ctx context.Context, tx *sqlx.Tx, codes []*model.VirtualCode) error {
	for _, c := range codes {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		f.s.codes[c.ID] = c
	}
	return nil
}

func (f fakeCodeRepo) Get(ctx context.Context, id uuid.UUID) (*model.VirtualCode, error) {
	c, ok := f.s.codes[id]
	if !ok {
		return nil, apperrors.NotFound("code", nil)
	}
	return c, nil
}

func (f fakeCodeRepo) GetByCode(ctx context.Context, code string) (*model.VirtualCode, error) {
	for _, c := range f.s.codes {
		if c.Code == code {
			return c, nil
		}
	}
	return nil, apperrors.NotFound("code", nil)
}

func (f fakeCodeRepo) ListLotStockTx(ctx context.Context, tx *sqlx.Tx, orgID, productID uuid.UUID) ([]*model.LotStock, error) {
	counts := make(map[uuid.UUID]int)
	owner := model.OrgOwner(orgID)
	for _, c := range f.s.codes {
		lot := f.s.lots[c.LotID]
		if lot == nil || lot.ProductID != productID {
			continue
		}
		if c.Status == model.CodeStatusInStock && c.Owner().Equal(owner) {
			counts[c.LotID]++
		}
	}

	var stocks []*model.LotStock
	for lotID, n := range counts {
		stocks = append(stocks, &model.LotStock{Lot: *f.s.lots[lotID], InStock: n})
	}
	sort.Slice(stocks, func(i, j int) bool {
		return stocks[i].ManufactureDate.Before(stocks[j].ManufactureDate)
	})
	return stocks, nil
}

func (f fakeCodeRepo) LockAvailableTx(ctx context.Context, tx *sqlx.Tx, orgID, lotID uuid.UUID, limit int) ([]uuid.UUID, error) {
	owner := model.OrgOwner(orgID)
	var ids []uuid.UUID
	for _, c := range f.s.codes {
		if c.LotID == lotID && c.Status == model.CodeStatusInStock && c.Owner().Equal(owner) {
			ids = append(ids, c.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if limit < len(ids) {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f fakeCodeRepo) LockByIDsTx(ctx context.Context, tx *sqlx.Tx, ids []uuid.UUID) ([]*model.VirtualCode, error) {
	var codes []*model.VirtualCode
	for _, id := range ids {
		if c, ok := f.s.codes[id]; ok {
			codes = append(codes, c)
		}
	}
	return codes, nil
}

func (f fakeCodeRepo) TransferTx(ctx context.Context, tx *sqlx.Tx, ids []uuid.UUID, status model.CodeStatus, owner model.Owner) error {
	for _, id := range ids {
		c, ok := f.s.codes[id]
		if !ok {
			return apperrors.NotFound("code", nil)
		}
		c.Status = status
		c.OwnerType = owner.Type
		if owner.Type == model.OwnerTypePatient {
			phone := owner.PatientPhone
			c.OwnerPhone = &phone
			c.OwnerOrgID = nil
		} else {
			orgID := owner.OrganizationID
			c.OwnerOrgID = &orgID
			c.OwnerPhone = nil
		}
	}
	return nil
}

func (f fakeCodeRepo) CountByLotStatus(ctx context.Context, lotID uuid.UUID) (map[model.CodeStatus]int, error) {
	counts := make(map[model.CodeStatus]int)
	for _, c := range f.s.codes {
		if c.LotID == lotID {
			counts[c.Status]++
		}
	}
	return counts, nil
}

type fakeShipmentRepo struct{ s *store }

func (f fakeShipmentRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, batch *model.ShipmentBatch, details []*model.ShipmentDetail) error {
	batch.ID = uuid.New()
	f.s.shipments[batch.ID] = batch
	return nil
}

func (f fakeShipmentRepo) Get(ctx context.Context, id uuid.UUID) (*model.ShipmentBatch, error) {
	b, ok := f.s.shipments[id]
	if !ok {
		return nil, apperrors.NotFound("shipment", nil)
	}
	return b, nil
}

func (f fakeShipmentRepo) Details(ctx context.Context, shipmentID uuid.UUID) ([]*model.ShipmentDetail, error) {
	return nil, nil
}

func (f fakeShipmentRepo) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.ShipmentBatch, error) {
	return f.Get(ctx, id)
}

func (f fakeShipmentRepo) MarkRecalledTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, reason string, at time.Time) error {
	b := f.s.shipments[id]
	b.IsRecalled = true
	b.RecallReason = &reason
	b.RecallDate = &at
	return nil
}

func (f fakeShipmentRepo) MarkReturnedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, at time.Time) error {
	b := f.s.shipments[id]
	b.IsReturned = true
	b.ReturnDate = &at
	return nil
}

func (f fakeShipmentRepo) List(ctx context.Context, filters *model.ShipmentFilters, p model.Pagination) ([]*model.ShipmentBatch, int, error) {
	return nil, 0, nil
}

type fakeTreatmentRepo struct{ s *store }

func (f fakeTreatmentRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, record *model.TreatmentRecord, items []*model.TreatmentItem) error {
	record.ID = uuid.New()
	f.s.treatments[record.ID] = record
	return nil
}

func (f fakeTreatmentRepo) Get(ctx context.Context, id uuid.UUID) (*model.TreatmentRecord, error) {
	r, ok := f.s.treatments[id]
	if !ok {
		return nil, apperrors.NotFound("treatment", nil)
	}
	return r, nil
}

func (f fakeTreatmentRepo) Items(ctx context.Context, treatmentID uuid.UUID) ([]*model.TreatmentItem, error) {
	return nil, nil
}

func (f fakeTreatmentRepo) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.TreatmentRecord, error) {
	return f.Get(ctx, id)
}

func (f fakeTreatmentRepo) MarkRecalledTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, reason string, at time.Time) error {
	r := f.s.treatments[id]
	r.IsRecalled = true
	r.RecallReason = &reason
	r.RecallDate = &at
	return nil
}

func (f fakeTreatmentRepo) List(ctx context.Context, hospitalID uuid.UUID, p model.Pagination) ([]*model.TreatmentRecord, int, error) {
	return nil, 0, nil
}

type fakeDisposalRepo struct{ s *store }

func (f fakeDisposalRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, record *model.DisposalRecord) error {
	record.ID = uuid.New()
	f.s.disposals[record.ID] = record
	return nil
}

func (f fakeDisposalRepo) Get(ctx context.Context, id uuid.UUID) (*model.DisposalRecord, error) {
	r, ok := f.s.disposals[id]
	if !ok {
		return nil, apperrors.NotFound("disposal", nil)
	}
	return r, nil
}

func (f fakeDisposalRepo) List(ctx context.Context, orgID uuid.UUID, p model.Pagination) ([]*model.DisposalRecord, int, error) {
	return nil, 0, nil
}

type fakeHistoryRepo struct{ s *store }

func (f fakeHistoryRepo) AppendTx(ctx context.Context, tx *sqlx.Tx, events []*model.HistoryEvent) error {
	for _, e := range events {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now()
		}
		f.s.history = append(f.s.history, e)
	}
	return nil
}

func (f fakeHistoryRepo) ListByCode(ctx context.Context, codeID uuid.UUID) ([]*model.CodeTrace, error) {
	return nil, nil
}

func (f fakeHistoryRepo) ListByRefTx(ctx context.Context, tx *sqlx.Tx, refType model.RefType, refID uuid.UUID, action model.ActionType) ([]*model.HistoryEvent, error) {
	var out []*model.HistoryEvent
	for _, e := range f.s.history {
		if e.RefType == refType && e.RefID == refID && e.ActionType == action && !e.IsRecall {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f fakeHistoryRepo) ListSummaries(ctx context.Context, filters *model.HistoryFilters, p model.Pagination) ([]*model.EventSummary, int, error) {
	return nil, 0, nil
}

func (f fakeHistoryRepo) ListSummariesCursor(ctx context.Context, filters *model.HistoryFilters, cursor string, limit int) ([]*model.EventSummary, string, error) {
	return nil, "", nil
}

type fakeIdemRepo struct{ s *store }

func idemKey(orgID uuid.UUID, key string) string { return orgID.String() + "|" + key }

func (f fakeIdemRepo) Get(ctx context.Context, orgID uuid.UUID, key string) (*model.IdempotencyKey, error) {
	return f.s.idem[idemKey(orgID, key)], nil
}

func (f fakeIdemRepo) ReserveTx(ctx context.Context, tx *sqlx.Tx, record *model.IdempotencyKey) error {
	k := idemKey(record.OrganizationID, record.Key)
	if _, exists := f.s.idem[k]; exists {
		return apperrors.Conflict("idempotency key already used", nil)
	}
	f.s.idem[k] = record
	return nil
}

type fakeOutboxRepo struct{ s *store }

func (f fakeOutboxRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error {
	event.ID = uuid.New()
	f.s.outbox = append(f.s.outbox, event)
	return nil
}

func (f fakeOutboxRepo) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	return nil, nil
}

func (f fakeOutboxRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error {
	return nil
}

func (f fakeOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}
