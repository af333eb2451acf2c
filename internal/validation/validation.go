package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"domiflash/internal/models"
)

const (
	MaxPrice          = 999999.0
	MaxDescriptionLen = 500
)

var (
	phonePattern    = regexp.MustCompile(`^\+?[0-9\s\-()]{7,15}$`)
	namePattern     = regexp.MustCompile(`^[a-zA-ZÀ-ÿñÑ\s]{2,100}$`)
	addressPattern  = regexp.MustCompile(`^[a-zA-Z0-9À-ÿñÑ\s#\-,.]{5,200}$`)
	safeTextPattern = regexp.MustCompile(`^[a-zA-Z0-9À-ÿñÑ\s.,!?\-]{1,500}$`)
)

// tags maps custom binding tags to their checks.
var tags = map[string]validator.Func{
	"phone":          func(fl validator.FieldLevel) bool { return ValidPhone(fl.Field().String()) },
	"personname":     func(fl validator.FieldLevel) bool { return ValidName(fl.Field().String()) },
	"address":        func(fl validator.FieldLevel) bool { return ValidAddress(fl.Field().String()) },
	"safetext":       func(fl validator.FieldLevel) bool { return ValidDescription(fl.Field().String()) },
	"price":          func(fl validator.FieldLevel) bool { return ValidPrice(fl.Field().Float()) },
	"quantity":       func(fl validator.FieldLevel) bool { return ValidQuantity(int(fl.Field().Int())) },
	"role":           func(fl validator.FieldLevel) bool { return ValidRole(fl.Field().String()) },
	"signuprole":     func(fl validator.FieldLevel) bool { return ValidSignupRole(fl.Field().String()) },
	"payment_method": func(fl validator.FieldLevel) bool { return ValidPaymentMethod(fl.Field().String()) },
	"order_status":   func(fl validator.FieldLevel) bool { return models.ValidOrderStatus(fl.Field().String()) },
}

// Register installs the custom tags on v and reports fields by their json name.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("validation: register %s: %w", tag, err)
		}
	}
	return nil
}

// RegisterGinValidators makes the custom tags usable in gin binding tags.
func RegisterGinValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("validation: gin validator engine is not go-playground/validator")
	}
	return Register(v)
}

func ValidPhone(s string) bool {
	return phonePattern.MatchString(strings.TrimSpace(s))
}

func ValidName(s string) bool {
	return namePattern.MatchString(strings.TrimSpace(s))
}

func ValidAddress(s string) bool {
	return addressPattern.MatchString(strings.TrimSpace(s))
}

// ValidDescription accepts empty text.
func ValidDescription(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	return len([]rune(s)) <= MaxDescriptionLen && safeTextPattern.MatchString(s)
}

// ValidPrice requires 0 <= p <= 999999 with at most two decimals.
func ValidPrice(p float64) bool {
	if p < 0 || p > MaxPrice || math.IsNaN(p) {
		return false
	}
	cents := p * 100
	return math.Abs(cents-math.Round(cents)) < 1e-6
}

func ValidQuantity(q int) bool {
	return q >= 1 && q <= models.MaxCartQuantity
}

func ValidRole(s string) bool {
	switch models.Role(s) {
	case models.RoleCustomer, models.RoleRestaurant, models.RoleCourier, models.RoleAdmin:
		return true
	}
	return false
}

// ValidSignupRole excludes administrators, who cannot self-register.
func ValidSignupRole(s string) bool {
	return ValidRole(s) && models.Role(s) != models.RoleAdmin
}

func ValidPaymentMethod(s string) bool {
	switch models.PaymentMethod(s) {
	case models.PaymentCash, models.PaymentCard, models.PaymentNequi,
		models.PaymentDaviplata, models.PaymentOther:
		return true
	}
	return false
}

// PasswordWarnings lists missing character classes. They are advisory only.
func PasswordWarnings(pw string) []string {
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	var missing []string
	if !upper {
		missing = append(missing, "al menos una mayúscula")
	}
	if !lower {
		missing = append(missing, "al menos una minúscula")
	}
	if !digit {
		missing = append(missing, "al menos un número")
	}
	if len(missing) == 0 {
		return nil
	}
	return []string{"Para mayor seguridad, incluye: " + strings.Join(missing, ", ")}
}

var messages = map[string]string{
	"required":       "es requerido",
	"email":          "formato de email inválido",
	"min":            "es demasiado corto",
	"max":            "es demasiado largo",
	"eqfield":        "no coincide",
	"phone":          "formato de teléfono inválido",
	"personname":     "contiene caracteres no válidos",
	"address":        "dirección inválida (5 a 200 caracteres)",
	"safetext":       "texto inválido (máximo 500 caracteres)",
	"price":          "precio inválido (0 a 999999, máximo 2 decimales)",
	"quantity":       "la cantidad debe estar entre 1 y 100",
	"role":           "rol inválido",
	"signuprole":     "rol inválido",
	"payment_method": "método de pago inválido",
	"order_status":   "estado inválido",
	"gte":            "valor demasiado bajo",
	"lte":            "valor demasiado alto",
}

// FieldErrors turns a binding error into a field -> message map. The second
// return is false when err is not a validation error (e.g. malformed JSON).
func FieldErrors(err error) (map[string]string, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = "valor inválido"
		}
		out[fe.Field()] = msg
	}
	return out, true
}
