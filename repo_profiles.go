package identity

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Profiles interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
	Create(ctx context.Context, record *Profile) (*Profile, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Profile) (*Profile, error)
	Update(ctx context.Context, record *Profile) (*Profile, error)
}

type profiles struct {
	repository.Repository[*Profile]
	db *bun.DB
}

var _ Profiles = (*profiles)(nil)

func NewProfilesRepository(db *bun.DB) Profiles {
	repo := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "user_id"
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
	}
}

func (a *profiles) GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	record := &Profile{}

	err := a.db.NewSelect().Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"user_id": userID.String()})
		}
		return nil, err
	}

	return record, nil
}

func (a *profiles) Create(ctx context.Context, record *Profile) (*Profile, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *profiles) CreateTx(ctx context.Context, tx bun.IDB, record *Profile) (*Profile, error) {
	if record != nil && record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return a.Repository.CreateTx(ctx, tx, record)
}

func (a *profiles) Update(ctx context.Context, record *Profile) (*Profile, error) {
	return a.Repository.Update(ctx, record, repository.UpdateByID(record.ID.String()))
}
