package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/BearBump/ShopShip/internal/apperrors"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

const maxBodyBytes = 1 << 20

// envelope is the body of every JSON response.
type envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Data    any      `json:"data,omitempty"`
	Error   string   `json:"error,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func fail(w http.ResponseWriter, code int, message string, err error) {
	env := envelope{Success: false, Message: message}
	if err != nil {
		env.Error = err.Error()
		env.Fields = apperrors.ValidationFields(err)
	}
	writeJSON(w, code, env)
}

// statusFor maps local workflow errors: bad input 400, missing record 404, the rest 500.
func statusFor(err error) int {
	switch {
	case apperrors.IsValidation(err):
		return http.StatusBadRequest
	case apperrors.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// shippingStatusFor maps errors of provider-backed operations. Transformer validation
// failures surface as server errors there, since the order was already accepted.
func shippingStatusFor(err error) int {
	if apperrors.IsNotFound(err) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind decodes a JSON body into dst and validates it. Every failing field is reported.
func (a *API) bind(r *http.Request, dst any, message string) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return apperrors.NewValidation("cannot read request body")
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			return apperrors.NewValidation("invalid JSON body: " + err.Error())
		}
	}
	if err := a.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return apperrors.NewValidation(message)
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return apperrors.NewValidation(message, fields...)
	}
	return nil
}
