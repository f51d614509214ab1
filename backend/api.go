package backend

import (
	"context"
	"time"

	"github.com/MrEthical07/messpass/domain"
)

// API is the remote data service.
type API interface {
	Ping(ctx context.Context) error

	GetMembership(ctx context.Context, userID string) (*domain.Membership, error)
	ListRenewals(ctx context.Context, userID string) ([]domain.RenewalRequest, error)
	CreateRenewal(ctx context.Context, userID string, in domain.RenewalInput) (domain.RenewalRequest, error)

	ListMeals(ctx context.Context, from, to time.Time) ([]domain.Meal, error)
	ListMealPasses(ctx context.Context, userID string) ([]domain.MealPass, error)
	ListClosures(ctx context.Context) ([]domain.MessClosure, error)
	ListRatings(ctx context.Context, userID string) ([]domain.Rating, error)
	CreateRating(ctx context.Context, userID string, in domain.RatingInput) (domain.Rating, error)

	ListAbsences(ctx context.Context, userID string) ([]domain.Absence, error)
	CreateAbsence(ctx context.Context, userID string, in domain.AbsenceInput) (domain.Absence, error)
	CancelAbsence(ctx context.Context, userID, absenceID string) (domain.Absence, error)
}
