package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Invoice is a read-only projection of a backend billing record.
type Invoice struct {
	ID             string     `json:"id"`
	Number         string     `json:"number,omitempty"`
	SubscriptionID string     `json:"subscription_id,omitempty"`
	Status         string     `json:"status"`
	Currency       string     `json:"currency"`
	AmountDue      int64      `json:"amount_due"`
	AmountPaid     int64      `json:"amount_paid"`
	CreatedAt      time.Time  `json:"created_at"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	HostedURL      string     `json:"hosted_invoice_url,omitempty"`
	PDFURL         string     `json:"invoice_pdf,omitempty"`
}

// DisplayType tells the UI how to render one payment method field.
type DisplayType int

const (
	DisplayMasked DisplayType = iota + 1
	DisplayBrandIcon
	DisplayWalletIcon
	DisplayText
)

var displayTypeNames = map[DisplayType]string{
	DisplayMasked:     "masked",
	DisplayBrandIcon:  "brand_icon",
	DisplayWalletIcon: "wallet_icon",
	DisplayText:       "text",
}

func (d DisplayType) String() string {
	if name, ok := displayTypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DisplayType(%d)", int(d))
}

// ParseDisplayType rejects unknown tags instead of silently falling back.
func ParseDisplayType(s string) (DisplayType, error) {
	for d, name := range displayTypeNames {
		if name == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown display_type %q", s)
}

func (d DisplayType) MarshalJSON() ([]byte, error) {
	name, ok := displayTypeNames[d]
	if !ok {
		return nil, fmt.Errorf("invalid display type %d", int(d))
	}
	return json.Marshal(name)
}

func (d *DisplayType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDisplayType(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// PaymentField is one entry of a payment method's polymorphic field map.
type PaymentField struct {
	DisplayType DisplayType `json:"display_type"`
	Value       string      `json:"value"`
}

// Render returns the text shown for the field. Icons render as a token the
// templates map to an image.
func (f PaymentField) Render() string {
	switch f.DisplayType {
	case DisplayMasked:
		if len(f.Value) <= 4 {
			return "•••• " + f.Value
		}
		return "•••• " + f.Value[len(f.Value)-4:]
	case DisplayBrandIcon:
		return "brand:" + f.Value
	case DisplayWalletIcon:
		return "wallet:" + f.Value
	case DisplayText:
		return f.Value
	}
	return f.Value
}

// MarshalJSON adds the rendered text as "display".
func (f PaymentField) MarshalJSON() ([]byte, error) {
	type plain PaymentField
	return json.Marshal(struct {
		plain
		Display string `json:"display"`
	}{plain(f), f.Render()})
}

// PaymentMethod is a read-only projection of a stored payment method.
type PaymentMethod struct {
	ID        string                  `json:"id"`
	Type      string                  `json:"type"`
	IsDefault bool                    `json:"is_default"`
	Fields    map[string]PaymentField `json:"fields"`
	CreatedAt time.Time               `json:"created_at,omitempty"`
}

// NoticeType is the severity of a user-visible notice.
type NoticeType string

const (
	NoticeSuccess NoticeType = "success"
	NoticeError   NoticeType = "error"
)

// Notice is the toast shown after a mutation.
type Notice struct {
	Type    NoticeType `json:"type"`
	Message string     `json:"message"`
}

func SuccessNotice(msg string) *Notice { return &Notice{Type: NoticeSuccess, Message: msg} }
func ErrorNotice(msg string) *Notice   { return &Notice{Type: NoticeError, Message: msg} }
