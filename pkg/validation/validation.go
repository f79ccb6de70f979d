package validation

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vinodismyname/mcpsales/internal/sales"
	"github.com/vinodismyname/mcpsales/pkg/pagination"
)

var (
	v    *validator.Validate
	once sync.Once
)

// Validator returns a singleton validator with custom rules registered.
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New()
		// Report fields by their JSON names so messages match the tool schema.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		// Source files: spreadsheets or delimited text only
		_ = v.RegisterValidation("source_ext", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return false
			}
			switch strings.ToLower(filepath.Ext(s)) {
			case ".xlsx", ".xlsm", ".csv":
				return true
			}
			return false
		})
		_ = v.RegisterValidation("export_ext", func(fl validator.FieldLevel) bool {
			switch strings.ToLower(filepath.Ext(strings.TrimSpace(fl.Field().String()))) {
			case ".xlsx", ".csv":
				return true
			}
			return false
		})
		_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
			_, err := time.Parse(sales.DateLayout, strings.TrimSpace(fl.Field().String()))
			return err == nil
		})
		_ = v.RegisterValidation("group_key", func(fl validator.FieldLevel) bool {
			_, err := sales.ParseGroupKey(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("sort_metric", func(fl validator.FieldLevel) bool {
			_, err := sales.ParseSortMetric(fl.Field().String())
			return err == nil
		})
		// Custom: cursor must be decodable via pagination.DecodeCursor
		_ = v.RegisterValidation("cursor", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return true // empty is allowed; use omitempty with this tag
			}
			if _, err := base64.RawURLEncoding.DecodeString(s); err != nil {
				return false
			}
			_, err := pagination.DecodeCursor(s)
			return err == nil
		})
	})
	return v
}

// ValidateStruct validates a struct and returns a user-friendly error string
// suitable for MCP tool errors. Returns empty string when valid.
func ValidateStruct(s any) string {
	if err := Validator().Struct(s); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			fe := ve[0]
			field := strings.ToLower(fe.Field())
			switch fe.Tag() {
			case "required":
				return fmt.Sprintf("VALIDATION: %s is required", field)
			case "required_without", "required_without_all":
				if field == "dataset_id" {
					return "VALIDATION: dataset_id is required (or supply cursor)"
				}
				return fmt.Sprintf("VALIDATION: %s is required", field)
			case "source_ext":
				return "VALIDATION: source must be a spreadsheet or CSV file (.xlsx, .xlsm, .csv)"
			case "export_ext":
				return "VALIDATION: export path must end in .csv or .xlsx"
			case "isodate":
				return fmt.Sprintf("VALIDATION: %s must be a date like 2024-01-31", field)
			case "group_key":
				return "VALIDATION: group_by must be one of sku, unified_code, fulfillment_channel, day"
			case "sort_metric":
				return "VALIDATION: sort_by must be one of revenue, orders, avg_price, avg_discount_pct"
			case "cursor":
				return "CURSOR_INVALID: failed to decode cursor; restart pagination from the first page"
			case "url", "http_url":
				return fmt.Sprintf("VALIDATION: %s must be an http(s) URL", field)
			case "min", "max", "gte", "lte":
				return fmt.Sprintf("VALIDATION: %s must satisfy %s=%s", field, fe.Tag(), fe.Param())
			}
			return fmt.Sprintf("VALIDATION: invalid %s", field)
		}
		return "VALIDATION: invalid inputs"
	}
	return ""
}
