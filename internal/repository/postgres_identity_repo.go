package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	txStdLib "github.com/Thiht/transactor/stdlib"

	"github.com/quietly/quietly/internal/model"
)

// PostgresIdentityRepo はidentitiesテーブルを扱う。
// 作成はユーザーと同時に行うため PostgresUserRepo.CreateWithIdentity が担う。
type PostgresIdentityRepo struct {
	dbGetter txStdLib.DBGetter
}

func NewPostgresIdentityRepo(dbGetter txStdLib.DBGetter) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{dbGetter: dbGetter}
}

// FindBySubject はIdPとsubの組からidentityを引く。見つからない場合はnil, nil。
func (r *PostgresIdentityRepo) FindBySubject(ctx context.Context, provider model.Provider, subject string) (*model.Identity, error) {
	var (
		ident        model.Identity
		providerName string
	)
	row := r.dbGetter(ctx).QueryRowContext(ctx,
		`SELECT id, user_id, provider, provider_user_id, created_at
		 FROM identities
		 WHERE provider = $1 AND provider_user_id = $2`,
		string(provider), subject,
	)
	switch err := row.Scan(&ident.ID, &ident.UserID, &providerName, &ident.Subject, &ident.CreatedAt); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to find identity (%s): %w", provider, err)
	}
	ident.Provider = model.Provider(providerName)
	return &ident, nil
}

var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
