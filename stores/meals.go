package stores

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/messpass/backend"
	"github.com/MrEthical07/messpass/domain"
	"github.com/MrEthical07/messpass/validation"
)

// MealsStoreName is the registry name of the meals store.
const MealsStoreName = "meals"

// MealsData is the meals store payload.
type MealsData struct {
	Menu     []domain.Meal
	Passes   []domain.MealPass
	Closures []domain.MessClosure
	Ratings  []domain.Rating
}

// Meals holds the menu window and the user's passes and ratings.
type Meals struct {
	*Store[MealsData]
	api  backend.API
	days int
}

// NewMeals returns a meals store loading days of menu starting today.
func NewMeals(api backend.API, days int, opts Options) *Meals {
	if days <= 0 {
		days = 7
	}
	return &Meals{
		Store: newStore(MealsStoreName, MealsData{}, opts),
		api:   api,
		days:  days,
	}
}

// Load fetches the menu, passes, closures and ratings concurrently.
func (m *Meals) Load(ctx context.Context, userID string) error {
	return m.Store.Load(ctx, func(ctx context.Context) (Reducer[MealsData], error) {
		today := domain.Day(m.opts.Now())
		var data MealsData

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			data.Menu, err = m.api.ListMeals(gctx, today, today.AddDate(0, 0, m.days-1))
			return err
		})
		g.Go(func() (err error) {
			data.Passes, err = m.api.ListMealPasses(gctx, userID)
			return err
		})
		g.Go(func() (err error) {
			data.Closures, err = m.api.ListClosures(gctx)
			return err
		})
		g.Go(func() (err error) {
			data.Ratings, err = m.api.ListRatings(gctx, userID)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return func(MealsData) MealsData { return data }, nil
	})
}

// SubmitRating rates a served meal.
func (m *Meals) SubmitRating(ctx context.Context, userID string, in domain.RatingInput) error {
	return m.Do(ctx, "submit_rating", func(ctx context.Context) (Reducer[MealsData], error) {
		if err := validation.Struct(&in); err != nil {
			return nil, err
		}
		r, err := m.api.CreateRating(ctx, userID, in)
		if err != nil {
			return nil, err
		}
		return func(cur MealsData) MealsData {
			cur.Ratings = appendCopy(cur.Ratings, r)
			return cur
		}, nil
	})
}

// IsClosed reports whether the mess is closed on day.
func (m *Meals) IsClosed(day time.Time) bool {
	for _, c := range m.Snapshot().Data.Closures {
		if c.Covers(day) {
			return true
		}
	}
	return false
}

// MenuFor returns the meals served on day, in serving order.
func (m *Meals) MenuFor(day time.Time) []domain.Meal {
	d := domain.Day(day)
	var out []domain.Meal
	for _, t := range domain.MealTypes {
		for _, meal := range m.Snapshot().Data.Menu {
			if meal.Type == t && domain.Day(meal.Day).Equal(d) {
				out = append(out, meal)
			}
		}
	}
	return out
}

// RatingFor returns the user's rating of mealID.
func (m *Meals) RatingFor(mealID string) (domain.Rating, bool) {
	for _, r := range m.Snapshot().Data.Ratings {
		if r.MealID == mealID {
			return r, true
		}
	}
	return domain.Rating{}, false
}

// ValidPasses returns the passes redeemable on day.
func (m *Meals) ValidPasses(day time.Time) []domain.MealPass {
	var out []domain.MealPass
	for _, p := range m.Snapshot().Data.Passes {
		if p.Valid(day) {
			out = append(out, p)
		}
	}
	return out
}
