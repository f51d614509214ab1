package domain

import "time"

// MealType is a service slot in the mess day.
type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
)

// MealTypes lists the slots in serving order.
var MealTypes = []MealType{Breakfast, Lunch, Dinner}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Meal is one menu entry.
type Meal struct {
	ID    string    `json:"id"`
	Day   time.Time `json:"day"`
	Type  MealType  `json:"type"`
	Items []string  `json:"items"`
}

// MealPass lets a regular (non-member) user eat one meal.
type MealPass struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Type     MealType  `json:"type"`
	Day      time.Time `json:"day"`
	Code     string    `json:"code"`
	Used     bool      `json:"used"`
	IssuedAt time.Time `json:"issued_at"`
}

// Valid reports whether the pass can still be redeemed on day.
func (p MealPass) Valid(day time.Time) bool {
	return !p.Used && Day(p.Day).Equal(Day(day))
}

// MessClosure is a span of days the mess does not serve. From and To are
// inclusive days.
type MessClosure struct {
	ID     string    `json:"id"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
	Reason string    `json:"reason"`
}

// Covers reports whether day falls inside the closure.
func (c MessClosure) Covers(day time.Time) bool {
	d := Day(day)
	return !d.Before(Day(c.From)) && !d.After(Day(c.To))
}

// Rating is a user's score for a served meal.
type Rating struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	MealID    string    `json:"meal_id"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RatingInput is the user-supplied part of a rating.
type RatingInput struct {
	MealID  string `json:"meal_id" validate:"required"`
	Score   int    `json:"score" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=500"`
}
