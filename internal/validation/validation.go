// Package validation plugs go-playground/validator into echo and turns its
// errors into the {"error":"validation failed","fields":{...}} body used by
// every handler.
package validation

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator implements echo.Validator.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator reporting fields by their json names.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Validate runs the struct tags of i.
func (cv *Validator) Validate(i any) error {
	return cv.v.Struct(i)
}

// Fields flattens a validation error into field -> failed rule.  Rules with
// a parameter are rendered as "rule=param", e.g. "max=100".  ok is false
// when err is not a validation error.
func Fields(err error) (map[string]string, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if p := fe.Param(); p != "" {
			rule += "=" + p
		}
		out[fieldPath(fe.Namespace())] = rule
	}
	return out, true
}

// fieldPath drops the leading struct name from a namespace such as
// "checkoutRequest.items[0].quantity".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// BindAndValidate binds the request into dst and validates it.  The
// returned error, if any, has already been written to the client as a 400.
func BindAndValidate(c echo.Context, dst any) (bool, error) {
	if err := c.Bind(dst); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(dst); err != nil {
		if fields, ok := Fields(err); ok {
			return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": fields})
		}
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return true, nil
}
