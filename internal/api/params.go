package api

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/lifer/internal/observation"
)

// Query defaults.
const (
	DefaultRadiusMiles     = 10
	DefaultBackDays        = 14
	DefaultSpeciesBackDays = observation.DefaultSpeciesBackDays
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func queryValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// geoParams are the location query parameters shared by the bird routes.
type geoParams struct {
	Lat         float64 `query:"lat" validate:"gte=-90,lte=90"`
	Lng         float64 `query:"lng" validate:"gte=-180,lte=180"`
	RadiusMiles float64 `query:"radiusMiles" validate:"gte=1,lte=25"`
	Back        int     `query:"back" validate:"gte=1,lte=30"`
}

func newGeoParams(back int) geoParams {
	return geoParams{RadiusMiles: DefaultRadiusMiles, Back: back}
}

// requireCoordinates reports missing lat or lng parameters.
func requireCoordinates(c echo.Context) []string {
	var details []string
	params := c.QueryParams()
	for _, name := range []string{"lat", "lng"} {
		if strings.TrimSpace(params.Get(name)) == "" {
			details = append(details, name+" is required")
		}
	}
	return details
}

func (p *geoParams) query() observation.Query {
	return observation.Query{
		Lat:          p.Lat,
		Lng:          p.Lng,
		RadiusMiles:  p.RadiusMiles,
		LookbackDays: p.Back,
	}
}

// subIDParams carries the supplementary checklist ids of the species route.
type subIDParams struct {
	SubIDs string `query:"subIds" validate:"max=4096"`
}

// photoParams select the checklists and species of a photo lookup.
type photoParams struct {
	SubIDs      string `query:"subIds" validate:"required,max=4096"`
	SpeciesCode string `query:"speciesCode" validate:"required,max=16"`
}

type lifeListParams struct {
	Sort   string `query:"sort" validate:"omitempty,oneof=date-asc date-desc alpha-asc alpha-desc"`
	Search string `query:"search" validate:"max=200"`
}

// bindQuery binds query parameters into dst and validates them. The
// returned details describe each rejected field.
func bindQuery(c echo.Context, dst any) (details []string, ok bool) {
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, dst); err != nil {
		return []string{bindErrorDetail(err)}, false
	}
	if err := queryValidator().Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !asValidationErrors(err, &fieldErrs) {
			return []string{err.Error()}, false
		}
		for _, fe := range fieldErrs {
			details = append(details, describeFieldError(fe))
		}
		return details, false
	}
	return nil, true
}

func bindErrorDetail(err error) string {
	if he, ok := err.(*echo.HTTPError); ok { //nolint:errorlint // binder returns the concrete type
		if he.Internal != nil {
			return he.Internal.Error()
		}
		return fmt.Sprint(he.Message)
	}
	return err.Error()
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	fieldErrs, ok := err.(validator.ValidationErrors) //nolint:errorlint // validator returns the concrete type
	if ok {
		*target = fieldErrs
	}
	return ok
}

func describeFieldError(fe validator.FieldError) string {
	name := queryName(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s is too long", name)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid", name)
	}
}

// queryName turns a struct field name into its query parameter name.
func queryName(fe validator.FieldError) string {
	switch fe.Field() {
	case "RadiusMiles":
		return "radiusMiles"
	case "SubIDs":
		return "subIds"
	case "SpeciesCode":
		return "speciesCode"
	default:
		return strings.ToLower(fe.Field())
	}
}

// splitSubIDs parses a comma-separated submission id list.
func splitSubIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	var ids []string
	for part := range strings.SplitSeq(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
