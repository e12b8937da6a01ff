package identity

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Roles interface {
	GetByID(ctx context.Context, id string) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Create(ctx context.Context, role *Role) (*Role, error)
	CreateTx(ctx context.Context, tx bun.IDB, role *Role) (*Role, error)
}

type roles struct {
	repository.Repository[*Role]
	db *bun.DB
}

var _ Roles = (*roles)(nil)

func NewRolesRepository(db *bun.DB) Roles {
	repo := repository.NewRepository[*Role](db, repository.ModelHandlers[*Role]{
		NewRecord: func() *Role { return &Role{} },
		GetID: func(r *Role) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Role, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &roles{
		Repository: repo,
		db:         db,
	}
}

func (a *roles) GetByID(ctx context.Context, id string) (*Role, error) {
	record := &Role{}

	err := a.db.NewSelect().Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id})
		}
		return nil, err
	}

	return record, nil
}

// GetByName resolves a role by its canonical name, e.g. "USER" or "ADMIN".
func (a *roles) GetByName(ctx context.Context, name string) (*Role, error) {
	record := &Role{}

	err := a.db.NewSelect().Model(record).
		Where("?TableAlias.name = ?", strings.ToUpper(name)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"name": name})
		}
		return nil, err
	}

	return record, nil
}

func (a *roles) List(ctx context.Context) ([]*Role, error) {
	var records []*Role
	err := a.db.NewSelect().Model(&records).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (a *roles) Create(ctx context.Context, role *Role) (*Role, error) {
	return a.CreateTx(ctx, a.db, role)
}

func (a *roles) CreateTx(ctx context.Context, tx bun.IDB, role *Role) (*Role, error) {
	if role != nil && role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	return a.Repository.CreateTx(ctx, tx, role)
}
