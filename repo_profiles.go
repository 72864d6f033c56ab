package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var StoreVerificationTokenSQL = `UPDATE "account_profiles" AS "prf"
SET
	"verification_token" = ?,
	"verification_issued_at" = ?
WHERE
	("prf"."account_id" = ?)
RETURNING *;`

var StoreResetTokenSQL = `UPDATE "account_profiles" AS "prf"
SET
	"reset_token" = ?,
	"reset_issued_at" = ?
WHERE
	("prf"."account_id" = ?)
RETURNING *;`

// MarkVerifiedSQL is guarded on email_verified so two simultaneous
// verification-link clicks cannot both claim the transition.
var MarkVerifiedSQL = `UPDATE "account_profiles" AS "prf"
SET
	"email_verified" = TRUE,
	"verification_token" = NULL,
	"verification_issued_at" = NULL
WHERE
	("prf"."account_id" = ?)
AND "prf"."email_verified" = FALSE
RETURNING *;`

// ConsumeResetTokenSQL is guarded on the stored token value, making the
// clear-on-success single-use semantics atomic.
var ConsumeResetTokenSQL = `UPDATE "account_profiles" AS "prf"
SET
	"reset_token" = NULL,
	"reset_issued_at" = NULL
WHERE
	("prf"."account_id" = ?)
AND "prf"."reset_token" = ?
RETURNING *;`

var UpdateRoleSQL = `UPDATE "account_profiles" AS "prf"
SET
	"role" = ?
WHERE
	("prf"."account_id" = ?)
RETURNING *;`

// Profiles is the storage surface for lifecycle/role state.
type Profiles interface {
	Create(ctx context.Context, record *Profile) (*Profile, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Profile) (*Profile, error)
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Profile, error)

	StoreVerificationTokenTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, token string, issuedAt time.Time) error
	StoreResetTokenTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, token string, issuedAt time.Time) error

	// MarkVerifiedTx reports false when the profile was already verified,
	// which callers treat as the idempotent no-op outcome.
	MarkVerifiedTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (bool, error)

	// ConsumeResetTokenTx reports false when the stored token does not
	// match, covering both replay and concurrent consumption.
	ConsumeResetTokenTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, token string) (bool, error)

	UpdateRole(ctx context.Context, accountID uuid.UUID, role Role) error
	UpdateRoleTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, role Role) error
}

type profilesRepo struct {
	repository.Repository[*Profile]
	db *bun.DB
}

var _ Profiles = (*profilesRepo)(nil)

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
	})

	return &profilesRepo{
		Repository: repo,
		db:         db,
	}
}

func (p *profilesRepo) Create(ctx context.Context, record *Profile) (*Profile, error) {
	return p.CreateTx(ctx, p.db, record)
}

func (p *profilesRepo) CreateTx(ctx context.Context, tx bun.IDB, record *Profile) (*Profile, error) {
	prepareProfileDefaults(record)
	return p.Repository.CreateTx(ctx, tx, record)
}

func (p *profilesRepo) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Profile, error) {
	record := &Profile{}
	err := p.db.NewSelect().
		Model(record).
		Where("?TableAlias.account_id = ?", accountID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"account_id": accountID.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (p *profilesRepo) StoreVerificationTokenTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, token string, issuedAt time.Time) error {
	res, err := p.Repository.RawTx(ctx, tx, StoreVerificationTokenSQL, token, issuedAt, accountID.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"account_id": accountID.String(),
			})
	}

	return nil
}

func (p *profilesRepo) StoreResetTokenTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, token string, issuedAt time.Time) error {
	res, err := p.Repository.RawTx(ctx, tx, StoreResetTokenSQL, token, issuedAt, accountID.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"account_id": accountID.String(),
			})
	}

	return nil
}

func (p *profilesRepo) MarkVerifiedTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (bool, error) {
	res, err := p.Repository.RawTx(ctx, tx, MarkVerifiedSQL, accountID.String())
	if err != nil {
		return false, err
	}

	return len(res) > 0, nil
}

func (p *profilesRepo) ConsumeResetTokenTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, token string) (bool, error) {
	res, err := p.Repository.RawTx(ctx, tx, ConsumeResetTokenSQL, accountID.String(), token)
	if err != nil {
		return false, err
	}

	return len(res) > 0, nil
}

func (p *profilesRepo) UpdateRole(ctx context.Context, accountID uuid.UUID, role Role) error {
	return p.UpdateRoleTx(ctx, p.db, accountID, role)
}

func (p *profilesRepo) UpdateRoleTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, role Role) error {
	res, err := p.Repository.RawTx(ctx, tx, UpdateRoleSQL, role, accountID.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"account_id": accountID.String(),
			})
	}

	return nil
}

func prepareProfileDefaults(record *Profile) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
