package credits

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pixora-ai/pixora-api/internal/models"
	"github.com/pixora-ai/pixora-api/internal/services/database"
	"github.com/pixora-ai/pixora-api/internal/services/events"
	"github.com/pixora-ai/pixora-api/internal/services/events/mocks"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/suite"
)

type CreditsServiceTestSuite struct {
	suite.Suite
	db      *database.DB
	service *CreditsService
	ctx     context.Context
}

func TestCreditsServiceSuite(t *testing.T) {
	suite.Run(t, new(CreditsServiceTestSuite))
}

func (s *CreditsServiceTestSuite) SetupTest() {
	db, err := database.New(models.DatabaseConfig{
		Type:     models.SQLite,
		FilePath: filepath.Join(s.T().TempDir(), "ledger.db"),
	})
	s.Require().NoError(err)
	s.Require().NoError(db.Migrate())

	s.db = db
	s.service = NewCreditsService(db.DB, nil, models.DefaultWelcomeBonusCredits)
	s.ctx = context.Background()
}

func (s *CreditsServiceTestSuite) TearDownTest() {
	s.Require().NoError(s.db.Close())
}

func (s *CreditsServiceTestSuite) grant(userID string, amount int64) *models.CreditTransaction {
	row, err := s.service.Grant(s.ctx, models.GrantParams{UserID: userID, Amount: amount})
	s.Require().NoError(err)
	return row
}

func (s *CreditsServiceTestSuite) balance(userID string) int64 {
	b, err := s.service.GetBalance(s.ctx, userID)
	s.Require().NoError(err)
	return b
}

func (s *CreditsServiceTestSuite) TestGetBalance_UnknownUser() {
	s.Equal(int64(0), s.balance("nobody"))
}

func (s *CreditsServiceTestSuite) TestGrant_Additive() {
	s.grant("user_1", 3)
	s.Equal(int64(3), s.balance("user_1"))

	row := s.grant("user_1", 100)
	s.Equal(int64(103), s.balance("user_1"))
	s.Equal(int64(100), row.RemainingCredits)
	s.Equal("Granted 100 credits", row.Description)
	s.Nil(row.GrantKey)
}

func (s *CreditsServiceTestSuite) TestGrant_InvalidInput() {
	_, err := s.service.Grant(s.ctx, models.GrantParams{UserID: "user_1", Amount: 0})
	s.ErrorIs(err, models.ErrInvalidAmount)

	_, err = s.service.Grant(s.ctx, models.GrantParams{UserID: "user_1", Amount: -5})
	s.ErrorIs(err, models.ErrInvalidAmount)

	_, err = s.service.Grant(s.ctx, models.GrantParams{UserID: " ", Amount: 5})
	s.ErrorIs(err, models.ErrInvalidUser)

	s.Equal(int64(0), s.balance("user_1"))
}

func (s *CreditsServiceTestSuite) TestGrant_DuplicateKey() {
	params := models.GrantParams{UserID: "user_1", Amount: 100, OrderNo: "ORD-1", GrantKey: models.OrderGrantKey("ORD-1")}

	_, err := s.service.Grant(s.ctx, params)
	s.Require().NoError(err)

	_, err = s.service.Grant(s.ctx, params)
	s.ErrorIs(err, models.ErrDuplicateGrant)
	s.Equal(int64(100), s.balance("user_1"))

	// the same key on another user does not collide
	params.UserID = "user_2"
	_, err = s.service.Grant(s.ctx, params)
	s.NoError(err)
}

func (s *CreditsServiceTestSuite) TestEnsureFreeCredits_OnlyOnce() {
	granted, err := s.service.EnsureFreeCredits(s.ctx, "user_1")
	s.Require().NoError(err)
	s.True(granted)
	s.Equal(int64(5), s.balance("user_1"))

	granted, err = s.service.EnsureFreeCredits(s.ctx, "user_1")
	s.Require().NoError(err)
	s.False(granted)
	s.Equal(int64(5), s.balance("user_1"))
}

func (s *CreditsServiceTestSuite) TestEnsureFreeCredits_NotAfterSpending() {
	_, err := s.service.EnsureFreeCredits(s.ctx, "user_1")
	s.Require().NoError(err)

	for range 5 {
		ok, err := s.service.Consume(s.ctx, "user_1")
		s.Require().NoError(err)
		s.True(ok)
	}
	s.Equal(int64(0), s.balance("user_1"))

	granted, err := s.service.EnsureFreeCredits(s.ctx, "user_1")
	s.Require().NoError(err)
	s.False(granted)
	s.Equal(int64(0), s.balance("user_1"))
}

func (s *CreditsServiceTestSuite) TestEnsureFreeCredits_SkipsPayingUsers() {
	s.grant("user_1", 100)

	granted, err := s.service.EnsureFreeCredits(s.ctx, "user_1")
	s.Require().NoError(err)
	s.False(granted)
	s.Equal(int64(100), s.balance("user_1"))
}

func (s *CreditsServiceTestSuite) TestEnsureFreeCredits_Concurrent() {
	var wg sync.WaitGroup
	var grants atomic.Int32

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			granted, err := s.service.EnsureFreeCredits(s.ctx, "user_1")
			s.NoError(err)
			if granted {
				grants.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), grants.Load())
	s.Equal(int64(5), s.balance("user_1"))
}

func (s *CreditsServiceTestSuite) TestConsume_EmptyBalance() {
	ok, err := s.service.Consume(s.ctx, "user_1")
	s.Require().NoError(err)
	s.False(ok)

	var count int64
	s.Require().NoError(s.db.Model(&models.CreditTransaction{}).Where("user_id = ?", "user_1").Count(&count).Error)
	s.Equal(int64(0), count)
}

func (s *CreditsServiceTestSuite) TestConsume_FIFO() {
	first := s.grant("user_1", 2)
	second := s.grant("user_1", 3)

	for range 3 {
		ok, err := s.service.Consume(s.ctx, "user_1")
		s.Require().NoError(err)
		s.True(ok)
	}

	var reloadedFirst, reloadedSecond models.CreditTransaction
	s.Require().NoError(s.db.First(&reloadedFirst, first.ID).Error)
	s.Require().NoError(s.db.First(&reloadedSecond, second.ID).Error)

	s.Equal(int64(0), reloadedFirst.RemainingCredits)
	s.Equal(int64(2), reloadedSecond.RemainingCredits)
	s.Equal(int64(2), s.balance("user_1"))
}

func (s *CreditsServiceTestSuite) TestConsume_NeverNegative() {
	s.grant("user_1", 2)

	results := make([]bool, 0, 4)
	for range 4 {
		ok, err := s.service.Consume(s.ctx, "user_1")
		s.Require().NoError(err)
		results = append(results, ok)
	}

	s.Equal([]bool{true, true, false, false}, results)
	s.Equal(int64(0), s.balance("user_1"))

	var consumeRows int64
	s.Require().NoError(s.db.Model(&models.CreditTransaction{}).
		Where("user_id = ? AND kind = ?", "user_1", models.CreditTransactionConsume).
		Count(&consumeRows).Error)
	s.Equal(int64(2), consumeRows)
}

func (s *CreditsServiceTestSuite) TestConsume_ConcurrentCallers() {
	const balance = 4
	const callers = 12
	s.grant("user_1", balance)

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.service.Consume(s.ctx, "user_1")
			s.NoError(err)
			if ok {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(balance), succeeded.Load())
	s.Equal(int64(0), s.balance("user_1"))
}

func (s *CreditsServiceTestSuite) TestListTransactions() {
	s.grant("user_1", 10)
	_, err := s.service.Consume(s.ctx, "user_1")
	s.Require().NoError(err)
	s.grant("user_2", 1)

	rows, total, err := s.service.ListTransactions(s.ctx, "user_1", 0, 0)
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Require().Len(rows, 2)
	s.Equal(models.CreditTransactionConsume, rows[0].Kind)
	s.Equal(int64(-1), rows[0].Credits)
	s.Equal(models.CreditTransactionGrant, rows[1].Kind)

	rows, total, err = s.service.ListTransactions(s.ctx, "user_1", 1, 1)
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Require().Len(rows, 1)
	s.Equal(models.CreditTransactionGrant, rows[0].Kind)
}

func (s *CreditsServiceTestSuite) TestPublishesLedgerEvents() {
	ctrl := gomock.NewController(s.T())
	publisher := mocks.NewMockPublisher(ctrl)
	service := NewCreditsService(s.db.DB, publisher, 5)

	publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e events.LedgerEvent) error {
			s.Equal(events.TypeCreditsGranted, e.Type)
			s.Equal(int64(5), e.Credits)
			return nil
		})
	publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e events.LedgerEvent) error {
			s.Equal(events.TypeCreditsConsumed, e.Type)
			s.Equal(int64(-1), e.Credits)
			return nil
		}).
		Times(5)

	_, err := service.EnsureFreeCredits(s.ctx, "user_1")
	s.Require().NoError(err)
	for range 5 {
		ok, err := service.Consume(s.ctx, "user_1")
		s.Require().NoError(err)
		s.True(ok)
	}

	// an empty consume publishes nothing
	ok, err := service.Consume(s.ctx, "user_1")
	s.Require().NoError(err)
	s.False(ok)
}
