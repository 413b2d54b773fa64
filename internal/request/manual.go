package request

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/biter777/countries"
	"github.com/go-playground/validator/v10"

	"github.com/Veraticus/fraudwatch/internal/model"
)

// Field names reported in validation errors, in reporting order.
const (
	FieldAmount           = "amount"
	FieldHour             = "hour"
	FieldDayOfWeek        = "day_of_week"
	FieldMerchantCategory = "merchant_category"
	FieldCountry          = "location.country"
	FieldLatitude         = "location.latitude"
	FieldLongitude        = "location.longitude"
	FieldDeviceType       = "device_info.device_type"
	FieldIPAddress        = "device_info.ip_address"
	FieldPreviousCount    = "previous_transactions_count"
)

var fieldOrder = []string{
	FieldAmount,
	FieldHour,
	FieldDayOfWeek,
	FieldMerchantCategory,
	FieldCountry,
	FieldLatitude,
	FieldLongitude,
	FieldDeviceType,
	FieldIPAddress,
	FieldPreviousCount,
}

var fieldMessages = map[string]string{
	FieldAmount:           "Valor deve ser maior que zero",
	FieldHour:             "Hora deve estar entre 0 e 23",
	FieldDayOfWeek:        "Dia da semana inválido (0-6)",
	FieldMerchantCategory: "Categoria do comerciante inválida",
	FieldCountry:          "País inválido (use o código ISO, ex: BR)",
	FieldLatitude:         "Latitude deve estar entre -90 e 90",
	FieldLongitude:        "Longitude deve estar entre -180 e 180",
	FieldDeviceType:       "Tipo de dispositivo obrigatório",
	FieldIPAddress:        "Endereço IP inválido",
	FieldPreviousCount:    "Quantidade de transações anteriores inválida",
}

// Form is the raw manual entry as typed by the user. Blank optional fields
// are omitted from the request.
type Form struct {
	Amount                    string
	Hour                      string
	DayOfWeek                 string
	MerchantCategory          string
	Country                   string
	State                     string
	City                      string
	Latitude                  string
	Longitude                 string
	DeviceType                string
	IPAddress                 string
	UserID                    string
	PreviousTransactionsCount string
}

// Manual parses and validates a form into a manual-variant payload. Every
// offending field is reported in a single *ValidationError.
func (b *Builder) Manual(form Form) (model.ManualPayload, error) {
	var errs fieldErrors
	var p model.ManualPayload

	p.Amount = parseFloat(&errs, FieldAmount, form.Amount, true)
	p.Hour = parseInt(&errs, FieldHour, form.Hour)
	p.DayOfWeek = parseInt(&errs, FieldDayOfWeek, form.DayOfWeek)
	p.MerchantCategory = model.MerchantCategory(strings.ToLower(strings.TrimSpace(form.MerchantCategory)))

	p.Location = model.Location{
		Country: normalizeCountry(form.Country),
		State:   strings.TrimSpace(form.State),
		City:    strings.TrimSpace(form.City),
	}
	if strings.TrimSpace(form.Latitude) != "" {
		lat := parseFloat(&errs, FieldLatitude, form.Latitude, false)
		p.Location.Latitude = &lat
	}
	if strings.TrimSpace(form.Longitude) != "" {
		lon := parseFloat(&errs, FieldLongitude, form.Longitude, false)
		p.Location.Longitude = &lon
	}

	deviceType := strings.TrimSpace(form.DeviceType)
	ip := strings.TrimSpace(form.IPAddress)
	if deviceType != "" || ip != "" {
		p.DeviceInfo = &model.DeviceInfo{DeviceType: deviceType, IPAddress: ip}
	}

	p.UserID = strings.TrimSpace(form.UserID)
	if strings.TrimSpace(form.PreviousTransactionsCount) != "" {
		count := parseInt(&errs, FieldPreviousCount, form.PreviousTransactionsCount)
		p.PreviousTransactionsCount = &count
	}

	b.collect(&errs, p)
	if err := errs.err(); err != nil {
		return model.ManualPayload{}, err
	}
	return p, nil
}

// ValidateManual checks an already typed payload against the same rules as
// Manual.
func (b *Builder) ValidateManual(p model.ManualPayload) error {
	var errs fieldErrors
	b.collect(&errs, p)
	return errs.err()
}

// collect adds validator failures and the amount ceiling to errs. Fields that
// already failed parsing keep their parse error.
func (b *Builder) collect(errs *fieldErrors, p model.ManualPayload) {
	if err := b.validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok {
			for _, fe := range verrs {
				field := fieldName(fe)
				msg, ok := fieldMessages[field]
				if !ok {
					msg = fmt.Sprintf("Campo inválido (%s)", field)
				}
				errs.add(field, msg)
			}
		}
	}

	if !errs.has(FieldAmount) && p.Amount > b.cfg.MaxAmount {
		errs.add(FieldAmount, fmt.Sprintf("Valor muito alto (máximo: %s)", formatCeiling(b.cfg.MaxAmount)))
	}

	slices.SortStableFunc(errs.fields, func(a, c FieldError) int {
		return fieldRank(a.Field) - fieldRank(c.Field)
	})
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors) //nolint:errorlint // validator returns the concrete type
	if ok {
		*target = verrs
	}
	return ok
}

func fieldRank(field string) int {
	if i := slices.Index(fieldOrder, field); i >= 0 {
		return i
	}
	return len(fieldOrder)
}

// fieldName drops the root struct name from the json-tag namespace, turning
// "ManualPayload.location.country" into "location.country".
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func parseFloat(errs *fieldErrors, field, raw string, required bool) float64 {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if raw == "" && !required {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		errs.add(field, fieldMessages[field])
		return 0
	}
	return v
}

func parseInt(errs *fieldErrors, field, raw string) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		errs.add(field, fieldMessages[field])
		return 0
	}
	return v
}

// normalizeCountry maps names and codes the countries package understands to
// their ISO alpha-2 code. Unknown input is passed through for validation.
func normalizeCountry(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if c := countries.ByName(raw); isCountry(c) {
		return c.Alpha2()
	}
	return strings.ToUpper(raw)
}

// isCountry rejects the Unknown and None sentinels, whose Alpha2 is not a
// two-letter code.
func isCountry(c countries.CountryCode) bool {
	return c != countries.Unknown && c != countries.None && len(c.Alpha2()) == 2
}

// formatCeiling renders reais with dot thousands separators. Cents are
// appended after a comma only when the ceiling has them.
func formatCeiling(v float64) string {
	cents := int64(math.Round(v * 100))
	digits := strconv.FormatInt(cents/100, 10)
	var sb strings.Builder
	sb.WriteString("R$ ")
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte('.')
		}
		sb.WriteRune(r)
	}
	if rem := cents % 100; rem != 0 {
		fmt.Fprintf(&sb, ",%02d", rem)
	}
	return sb.String()
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("country", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		c := countries.ByName(code)
		return isCountry(c) && c.Alpha2() == code
	})
	_ = v.RegisterValidation("merchant", func(fl validator.FieldLevel) bool {
		return slices.Contains(model.MerchantCategories, model.MerchantCategory(fl.Field().String()))
	})

	return v
}
