package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FeatureCount is the number of anonymized V features in a synthetic payload.
const FeatureCount = 28

// FeaturePayload is the fixed-shape request body of the dashboard variant:
// a time offset, the anonymized V1..V28 features and the transaction amount.
type FeaturePayload struct {
	V      [FeatureCount]float64
	Time   float64
	Amount float64
}

// MarshalJSON writes the payload as one flat object keyed Time, V1..V28, Amount.
func (p FeaturePayload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"Time":`)
	buf.WriteString(strconv.FormatFloat(p.Time, 'f', -1, 64))
	for i, v := range p.V {
		fmt.Fprintf(&buf, `,"V%d":`, i+1)
		buf.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	buf.WriteString(`,"Amount":`)
	buf.WriteString(strconv.FormatFloat(p.Amount, 'f', -1, 64))
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a flat feature object. Unknown keys are ignored;
// every one of Time, V1..V28 and Amount must be present.
func (p *FeaturePayload) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	lookup := func(key string) (float64, error) {
		v, ok := raw[key]
		if !ok {
			return 0, fmt.Errorf("missing feature %q", key)
		}
		return v, nil
	}

	var out FeaturePayload
	var err error
	if out.Time, err = lookup("Time"); err != nil {
		return err
	}
	if out.Amount, err = lookup("Amount"); err != nil {
		return err
	}
	for i := range out.V {
		if out.V[i], err = lookup(fmt.Sprintf("V%d", i+1)); err != nil {
			return err
		}
	}

	*p = out
	return nil
}

// MerchantCategory identifies the kind of merchant in a manual submission.
type MerchantCategory string

// Recognized merchant categories.
const (
	MerchantOnlineRetail  MerchantCategory = "online_retail"
	MerchantPhysicalStore MerchantCategory = "physical_store"
	MerchantATM           MerchantCategory = "atm"
	MerchantGasStation    MerchantCategory = "gas_station"
	MerchantGrocery       MerchantCategory = "grocery"
	MerchantRestaurant    MerchantCategory = "restaurant"
)

// MerchantCategories lists every recognized merchant category in display order.
var MerchantCategories = []MerchantCategory{
	MerchantOnlineRetail,
	MerchantPhysicalStore,
	MerchantATM,
	MerchantGasStation,
	MerchantGrocery,
	MerchantRestaurant,
}

// Location is where a manual transaction took place. Only Country is required.
type Location struct {
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,min=-90,max=90"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,min=-180,max=180"`
	Country   string   `json:"country" validate:"required,country"`
	State     string   `json:"state,omitempty"`
	City      string   `json:"city,omitempty"`
}

// DeviceInfo describes the device a manual transaction originated from.
type DeviceInfo struct {
	DeviceType string `json:"device_type" validate:"required"`
	IPAddress  string `json:"ip_address,omitempty" validate:"omitempty,ip"`
}

// ManualPayload is the semantically named request body of the manual
// (mobile form) variant.
type ManualPayload struct {
	DeviceInfo                *DeviceInfo      `json:"device_info,omitempty" validate:"omitempty"`
	PreviousTransactionsCount *int             `json:"previous_transactions_count,omitempty" validate:"omitempty,min=0"`
	MerchantCategory          MerchantCategory `json:"merchant_category" validate:"required,merchant"`
	UserID                    string           `json:"user_id,omitempty"`
	Location                  Location         `json:"location"`
	Amount                    float64          `json:"amount" validate:"gt=0"`
	Hour                      int              `json:"hour" validate:"min=0,max=23"`
	DayOfWeek                 int              `json:"day_of_week" validate:"min=0,max=6"`
}
