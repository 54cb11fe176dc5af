package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads the body into dst and runs the struct validations. It
// writes the 400 response itself and reports whether the handler may go on.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", "Requisição muito grande")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid_json", "Corpo da requisição inválido")
		return false
	}
	return validateStruct(w, dst)
}

func validateStruct(w http.ResponseWriter, dst any) bool {
	err := validate.Struct(dst)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		respondError(w, http.StatusBadRequest, "invalid_input", "Dados inválidos")
		return false
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fieldPath(fe)] = describe(fe)
	}
	respondJSON(w, http.StatusBadRequest, Envelope{Error: &ErrorBody{
		Code:    "validation_failed",
		Message: "Dados inválidos",
		Details: details,
	}})
	return false
}

// fieldPath drops the top level struct name: "registerRequest.email" -> "email".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "obrigatório"
	case "email":
		return "e-mail inválido"
	case "min", "gte":
		return fmt.Sprintf("mínimo %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("máximo %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("deve ser um de: %s", fe.Param())
	case "len":
		return fmt.Sprintf("deve ter %s caracteres", fe.Param())
	case "numeric":
		return "deve conter apenas números"
	default:
		return fe.Tag()
	}
}
