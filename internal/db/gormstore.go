package db

import (
	"context"
	"fmt"

	"github.com/atharvakonge/paper-trader/internal/apperrors"
	"github.com/atharvakonge/paper-trader/internal/config"
	"github.com/atharvakonge/paper-trader/internal/logger"
	"github.com/atharvakonge/paper-trader/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on gorm with the pgx-backed postgres driver.
type GormStore struct {
	db *gorm.DB
}

// ConnectGorm opens gorm with pool settings and the application logger.
func ConnectGorm(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         NewGormLogger(log, cfg.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connected", map[string]any{
		"host":     cfg.Host,
		"port":     cfg.Port,
		"database": cfg.Name,
		"mode":     cfg.AccessMode,
	})
	return gdb, nil
}

// AutoMigrate creates the tables from the row types.
func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&userRecord{}, &transactionRecord{}, &cashEventRecord{}, &sessionRecord{})
}

func NewGormStore(gdb *gorm.DB) *GormStore {
	return &GormStore{db: gdb}
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User, opening *models.CashEvent) error {
	return s.WithinTx(ctx, func(t Tx) error {
		tx := t.(*gormTx)
		rec := userRecord{Username: user.Username, Hash: user.PasswordHash, Cash: user.Cash}
		if err := tx.db.WithContext(ctx).Omit(clause.Associations).Create(&rec).Error; err != nil {
			return mapError(err, EntityUser, "insert user")
		}
		user.ID = rec.ID
		user.CreatedAt = rec.CreatedAt

		if opening != nil {
			opening.UserID = user.ID
			return tx.AppendCashEvent(ctx, opening)
		}
		return nil
	})
}

func (s *GormStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var rec userRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, mapError(err, EntityUser, "get user")
	}
	return rec.toModel(), nil
}

func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var rec userRecord
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&rec).Error; err != nil {
		return nil, mapError(err, EntityUser, "get user by username")
	}
	return rec.toModel(), nil
}

func (s *GormStore) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	res := s.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", userID).Update("hash", hash)
	if res.Error != nil {
		return mapError(res.Error, EntityUser, "update password")
	}
	if res.RowsAffected == 0 {
		return mapError(gorm.ErrRecordNotFound, EntityUser, "update password")
	}
	return nil
}

func (s *GormStore) SumShares(ctx context.Context, userID int64) ([]models.ShareSum, error) {
	return gormSumShares(s.db.WithContext(ctx), userID)
}

func (s *GormStore) ListTransactions(ctx context.Context, userID int64, limit int) ([]models.Transaction, error) {
	var recs []transactionRecord
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if limit > 0 {
		q = q.Order("id DESC").Limit(limit)
	} else {
		q = q.Order("id")
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch transactions for user %d: %w", userID, err)
	}

	txns := make([]models.Transaction, len(recs))
	for i, r := range recs {
		txns[i] = r.toModel()
	}
	if limit > 0 {
		reverse(txns)
	}
	return txns, nil
}

func (s *GormStore) ListCashEvents(ctx context.Context, userID int64) ([]models.CashEvent, error) {
	var recs []cashEventRecord
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch cash events for user %d: %w", userID, err)
	}
	events := make([]models.CashEvent, len(recs))
	for i, r := range recs {
		events[i] = r.toModel()
	}
	return events, nil
}

func (s *GormStore) CreateSession(ctx context.Context, session *models.Session) error {
	rec := sessionRecord{Token: session.Token, UserID: session.UserID, ExpiresAt: session.ExpiresAt}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&rec).Error; err != nil {
		return mapError(err, EntitySession, "create session")
	}
	session.CreatedAt = rec.CreatedAt
	return nil
}

func (s *GormStore) GetSession(ctx context.Context, token string) (*models.Session, error) {
	var rec sessionRecord
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&rec).Error; err != nil {
		return nil, mapError(err, EntitySession, "get session")
	}
	return rec.toModel(), nil
}

func (s *GormStore) DeleteSession(ctx context.Context, token string) error {
	err := s.db.WithContext(ctx).Where("token = ?", token).Delete(&sessionRecord{}).Error
	return mapError(err, EntitySession, "delete session")
}

// WithinTx uses gorm's managed transaction: commit on nil, rollback on error or panic.
func (s *GormStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) LockUser(ctx context.Context, userID int64) (*models.User, error) {
	var rec userRecord
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&rec, userID).Error
	if err != nil {
		return nil, mapError(err, EntityUser, "lock user")
	}
	return rec.toModel(), nil
}

func (t *gormTx) SumShares(ctx context.Context, userID int64) ([]models.ShareSum, error) {
	return gormSumShares(t.db.WithContext(ctx), userID)
}

func (t *gormTx) AppendTransaction(ctx context.Context, txn *models.Transaction) error {
	rec := transactionRecord{
		UserID: txn.UserID,
		Type:   string(txn.Side),
		Symbol: txn.Symbol,
		Price:  txn.Price,
		Shares: txn.Shares,
	}
	if err := t.db.WithContext(ctx).Omit(clause.Associations).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	txn.ID = rec.ID
	txn.CreatedAt = rec.CreatedAt
	return nil
}

func (t *gormTx) UpdateCash(ctx context.Context, userID int64, cash decimal.Decimal) error {
	if cash.GreaterThan(models.MaxCash) {
		return apperrors.ErrCashLimitExceeded
	}
	res := t.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", userID).Update("cash", cash)
	if res.Error != nil {
		return mapError(res.Error, EntityUser, "update cash")
	}
	if res.RowsAffected == 0 {
		return mapError(gorm.ErrRecordNotFound, EntityUser, "update cash")
	}
	return nil
}

func (t *gormTx) AppendCashEvent(ctx context.Context, event *models.CashEvent) error {
	rec := cashEventRecord{
		UserID:        event.UserID,
		Kind:          string(event.Kind),
		Amount:        event.Amount,
		BalanceAfter:  event.BalanceAfter,
		TransactionID: event.TransactionID,
	}
	if err := t.db.WithContext(ctx).Omit(clause.Associations).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to record cash event: %w", err)
	}
	event.ID = rec.ID
	event.CreatedAt = rec.CreatedAt
	return nil
}

func gormSumShares(q *gorm.DB, userID int64) ([]models.ShareSum, error) {
	var rows []shareSumRow
	err := q.Model(&transactionRecord{}).
		Select("symbol, type, SUM(shares)::BIGINT AS shares").
		Where("user_id = ?", userID).
		Group("symbol, type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum shares for user %d: %w", userID, err)
	}

	sums := make([]models.ShareSum, len(rows))
	for i, r := range rows {
		side, err := models.ParseSide(r.Side)
		if err != nil {
			return nil, fmt.Errorf("sum shares for user %d: %w", userID, err)
		}
		sums[i] = models.ShareSum{Symbol: r.Symbol, Side: side, Shares: r.Shares}
	}
	return sums, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
