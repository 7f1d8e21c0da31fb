package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/trace-api/internal/repository"
)

type organizationRepository struct {
	db *sqlx.DB
}

type productRepository struct {
	db *sqlx.DB
}

type lotRepository struct {
	db *sqlx.DB
}

type codeRepository struct {
	db *sqlx.DB
}

type shipmentRepository struct {
	db *sqlx.DB
}

type treatmentRepository struct {
	db *sqlx.DB
}

type disposalRepository struct {
	db *sqlx.DB
}

type historyRepository struct {
	db *sqlx.DB
}

type idempotencyRepository struct {
	db *sqlx.DB
}

func NewOrganizationRepository(db *sqlx.DB) repository.OrganizationRepository {
	return &organizationRepository{db: db}
}

func NewProductRepository(db *sqlx.DB) repository.ProductRepository {
	return &productRepository{db: db}
}

func NewLotRepository(db *sqlx.DB) repository.LotRepository {
	return &lotRepository{db: db}
}

func NewCodeRepository(db *sqlx.DB) repository.CodeRepository {
	return &codeRepository{db: db}
}

func NewShipmentRepository(db *sqlx.DB) repository.ShipmentRepository {
	return &shipmentRepository{db: db}
}

func NewTreatmentRepository(db *sqlx.DB) repository.TreatmentRepository {
	return &treatmentRepository{db: db}
}

func NewDisposalRepository(db *sqlx.DB) repository.DisposalRepository {
	return &disposalRepository{db: db}
}

func NewHistoryRepository(db *sqlx.DB) repository.HistoryRepository {
	return &historyRepository{db: db}
}

func NewIdempotencyRepository(db *sqlx.DB) repository.IdempotencyRepository {
	return &idempotencyRepository{db: db}
}
