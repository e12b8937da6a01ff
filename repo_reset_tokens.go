package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type PasswordResetTokens interface {
	GetByID(ctx context.Context, id string) (*PasswordResetToken, error)
	GetBySecret(ctx context.Context, secret string) (*PasswordResetToken, error)
	Create(ctx context.Context, record *PasswordResetToken) (*PasswordResetToken, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *PasswordResetToken) (*PasswordResetToken, error)
	MarkUsedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	DeleteByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type resetTokens struct {
	repository.Repository[*PasswordResetToken]
	db *bun.DB
}

var _ PasswordResetTokens = (*resetTokens)(nil)

func NewPasswordResetTokensRepository(db *bun.DB) PasswordResetTokens {
	repo := repository.NewRepository[*PasswordResetToken](db, repository.ModelHandlers[*PasswordResetToken]{
		NewRecord: func() *PasswordResetToken { return &PasswordResetToken{} },
		GetID: func(t *PasswordResetToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *PasswordResetToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})

	return &resetTokens{
		Repository: repo,
		db:         db,
	}
}

func (a *resetTokens) GetByID(ctx context.Context, id string) (*PasswordResetToken, error) {
	return a.getWhere(ctx, a.db, "id", id)
}

func (a *resetTokens) GetBySecret(ctx context.Context, secret string) (*PasswordResetToken, error) {
	return a.getWhere(ctx, a.db, "token", secret)
}

func (a *resetTokens) getWhere(ctx context.Context, db bun.IDB, column, value string) (*PasswordResetToken, error) {
	record := &PasswordResetToken{}

	err := db.NewSelect().Model(record).
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{column: value})
		}
		return nil, err
	}

	return record, nil
}

func (a *resetTokens) Create(ctx context.Context, record *PasswordResetToken) (*PasswordResetToken, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *resetTokens) CreateTx(ctx context.Context, tx bun.IDB, record *PasswordResetToken) (*PasswordResetToken, error) {
	if record != nil {
		if record.ID == uuid.Nil {
			record.ID = uuid.New()
		}
		if record.CreatedAt == nil {
			now := time.Now()
			record.CreatedAt = &now
		}
	}
	return a.Repository.CreateTx(ctx, tx, record)
}

func (a *resetTokens) MarkUsedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewUpdate().
		Model((*PasswordResetToken)(nil)).
		Set("used = ?", true).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	return err
}

// DeleteByUserIDTx discards every outstanding token for the account so a new
// request always leaves a single live token behind.
func (a *resetTokens) DeleteByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*PasswordResetToken)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Exec(ctx)
	return err
}

func (a *resetTokens) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := a.db.NewDelete().
		Model((*PasswordResetToken)(nil)).
		Where("?TableAlias.expiry_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
