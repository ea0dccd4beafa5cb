// Package profile holds the per-user search preferences: a saved home
// location and the default search radius.
package profile

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tphakala/lifer/internal/errors"
)

// Radius bounds in miles.
const (
	DefaultRadiusMiles = 10
	MinRadiusMiles     = 1
	MaxRadiusMiles     = 25
)

// Settings are a user's saved preferences. Lat and Lng are nil until a
// location has been saved.
type Settings struct {
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	RadiusMiles float64  `json:"radiusMiles"`
}

// Defaults returns the settings of a user who never saved any.
func Defaults() Settings {
	return Settings{RadiusMiles: DefaultRadiusMiles}
}

// HasLocation reports whether a home location is saved.
func (s *Settings) HasLocation() bool {
	return s.Lat != nil && s.Lng != nil
}

// Update is a partial change. Nil fields are left as they are; the
// location is only changed as a lat/lng pair.
type Update struct {
	Lat         *float64 `json:"lat,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Lng         *float64 `json:"lng,omitempty" validate:"omitempty,gte=-180,lte=180"`
	RadiusMiles *float64 `json:"radiusMiles,omitempty" validate:"omitempty,gte=1,lte=25"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func updateValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks value ranges and that lat and lng come together.
func (u *Update) Validate() error {
	var problems []string
	if (u.Lat == nil) != (u.Lng == nil) {
		problems = append(problems, "lat and lng must be set together")
	}
	if err := updateValidator().Struct(u); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			problems = append(problems, fieldName(fe.Field())+" is out of range")
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.Newf("invalid settings: %s", strings.Join(problems, "; ")).
		Category(errors.CategoryValidation).
		Component("profile").
		Build()
}

// IsEmpty reports whether the update changes nothing.
func (u *Update) IsEmpty() bool {
	return u.Lat == nil && u.Lng == nil && u.RadiusMiles == nil
}

// Apply returns s with u applied. u must have passed Validate.
func (s Settings) Apply(u *Update) Settings {
	if u.Lat != nil && u.Lng != nil {
		lat, lng := *u.Lat, *u.Lng
		s.Lat, s.Lng = &lat, &lng
	}
	if u.RadiusMiles != nil {
		s.RadiusMiles = *u.RadiusMiles
	}
	return s
}

func fieldName(field string) string {
	if field == "RadiusMiles" {
		return "radiusMiles"
	}
	return strings.ToLower(field)
}
