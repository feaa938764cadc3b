package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// useJSONFieldNames makes validator report json tag names instead of Go field names
func useJSONFieldNames() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(func(fld reflect.StructField) string {
				name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
				if name == "-" {
					return ""
				}
				if name == "" {
					return fld.Name
				}
				return name
			})
		}
	})
}

// BindJSON decodes and validates the request body into obj.
// Decode and validation failures are returned as *ValidationError.
func BindJSON(c *gin.Context, obj any) error {
	useJSONFieldNames()
	if err := c.ShouldBindJSON(obj); err != nil {
		return FromBinding(err)
	}
	return nil
}

// FromBinding converts a gin binding error into a *ValidationError
func FromBinding(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{Field: fe.Field(), Message: describe(fe)}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return &ValidationError{Message: "request body is required"}
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return &ValidationError{Message: "request body is not valid JSON"}
	case errors.As(err, &typeErr):
		return &ValidationError{Field: typeErr.Field, Message: fmt.Sprintf("must be of type %s", typeErr.Type)}
	}
	return &ValidationError{Message: err.Error()}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}
