package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const maxJSONBodyBytes = 64 << 10

var requestValidator = validator.New()

func init() {
	requestValidator.RegisterTagNameFunc(jsonFieldName)
}

// BindStrictJSON 解码请求体，拒绝未知字段与多余内容，并按 validate 标签校验
func BindStrictJSON(c *gin.Context, dst interface{}) error {
	if c.Request == nil || c.Request.Body == nil {
		return errors.New("request body is required")
	}
	decoder := json.NewDecoder(io.LimitReader(c.Request.Body, maxJSONBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if decoder.More() {
		return errors.New("request body must contain a single JSON object")
	}
	if err := requestValidator.Struct(dst); err != nil {
		return describeValidation(err)
	}
	return nil
}

func describeValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	first := fieldErrs[0]
	switch first.Tag() {
	case "required":
		return fmt.Errorf("%s is required", first.Field())
	case "email":
		return fmt.Errorf("%s must be a valid email address", first.Field())
	case "oneof":
		return fmt.Errorf("%s must be one of [%s]", first.Field(), first.Param())
	default:
		return fmt.Errorf("%s is invalid", first.Field())
	}
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return field.Name
	}
	return name
}
