package models

// Gender codes used by VK and by search preferences
const (
	SexAny    = 0
	SexFemale = 1
	SexMale   = 2
)

// Default search preferences applied when a row is created
const (
	DefaultAgeMin    = 18
	DefaultAgeMax    = 99
	DefaultCityID    = 1
	DefaultCityTitle = "Москва"
	MaxRelation      = 8
)

// SearchPreferences stores what a user is looking for. One row per user
type SearchPreferences struct {
	ID        int64  `json:"id" db:"id"`
	UserID    int64  `json:"user_id" db:"user_id"`
	AgeMin    int    `json:"age_min" db:"age_min"`
	AgeMax    int    `json:"age_max" db:"age_max"`
	Sex       int    `json:"sex" db:"sex"`           // 0 any, 1 female, 2 male
	CityID    int64  `json:"city_id" db:"city_id"`
	CityTitle string `json:"city_title" db:"city_title"`
	Relation  int    `json:"relation" db:"relation"` // VK relation code 0-8
}

// DefaultSearchPreferences returns preferences with default values for the user
func DefaultSearchPreferences(userID int64) SearchPreferences {
	return SearchPreferences{
		UserID:    userID,
		AgeMin:    DefaultAgeMin,
		AgeMax:    DefaultAgeMax,
		Sex:       SexAny,
		CityID:    DefaultCityID,
		CityTitle: DefaultCityTitle,
	}
}

// PreferencesUpdate is a partial update of search preferences.
// Nil fields are left untouched
type PreferencesUpdate struct {
	AgeMin    *int
	AgeMax    *int
	Sex       *int
	CityID    *int64
	CityTitle *string
	Relation  *int
}

// Empty reports whether the update changes nothing
func (u PreferencesUpdate) Empty() bool {
	return u.AgeMin == nil && u.AgeMax == nil && u.Sex == nil &&
		u.CityID == nil && u.CityTitle == nil && u.Relation == nil
}
