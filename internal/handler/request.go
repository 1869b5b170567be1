package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"bookstore/internal/apperr"
	"bookstore/internal/model"
	"bookstore/internal/validate"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the isbn and password_strength tags to gin's
// validator and reports fields by their JSON names.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("isbn", func(fl validator.FieldLevel) bool {
			_, err := validate.NormalizeISBN(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("password_strength", func(fl validator.FieldLevel) bool {
			return validate.ValidatePasswordStrength(fl.Field().String()) == nil
		})
	})
}

// bindJSON decodes and validates the body. Malformed JSON is a bad request,
// anything that parses but fails validation is a validation failure.
func bindJSON(c *gin.Context, obj any) error {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return nil
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.As(err, &syntaxErr):
		return apperr.Wrap(apperr.BadRequest, "Malformed JSON request body", err)
	case errors.As(err, &typeErr):
		return apperr.Wrap(apperr.ValidationFailed, fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type), err)
	case errors.As(err, &validationErrs):
		return apperr.Wrap(apperr.ValidationFailed, validationMessage(validationErrs), err)
	}
	return apperr.Wrap(apperr.ValidationFailed, err.Error(), err)
}

func validationMessage(errs validator.ValidationErrors) string {
	messages := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		var msg string
		switch fe.Tag() {
		case "required":
			msg = fmt.Sprintf("%s is required", field)
		case "email":
			msg = fmt.Sprintf("%s must be a valid email address", field)
		case "min":
			msg = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		case "max":
			msg = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		case "oneof":
			msg = fmt.Sprintf("%s must be one of: %s", field, fe.Param())
		case "isbn":
			msg = validate.ErrInvalidISBN.Message
		case "password_strength":
			msg = passwordMessage(fe.Value())
		default:
			msg = fmt.Sprintf("%s is invalid", field)
		}
		messages = append(messages, msg)
	}
	return strings.Join(messages, "; ")
}

func passwordMessage(value any) string {
	var password string
	switch v := value.(type) {
	case string:
		password = v
	case *string:
		if v != nil {
			password = *v
		}
	}
	if err := validate.ValidatePasswordStrength(password); err != nil {
		return validate.PasswordError(err).Message
	}
	return "Password is not strong enough"
}

func parseID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Newf(apperr.BadRequest, "Invalid %s: must be a positive integer", name)
	}
	return id, nil
}

// parsePage reads skip and limit; limit is capped rather than rejected
func parsePage(c *gin.Context) (model.Page, error) {
	page := model.Page{Skip: 0, Limit: model.DefaultPageLimit}

	if raw := c.Query("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return page, apperr.New(apperr.ValidationFailed, "skip must be a non-negative integer")
		}
		page.Skip = skip
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return page, apperr.New(apperr.ValidationFailed, "limit must be a positive integer")
		}
		page.Limit = limit
	}
	return page.Normalize(), nil
}
