package models

// Plan is a named resource tier a subscription is billed against.
type Plan struct {
	ID            string `yaml:"id" json:"id" validate:"required"`
	Title         string `yaml:"title" json:"title" validate:"required"`
	RAM           int    `yaml:"ram" json:"ram" validate:"gt=0"` // GB
	CPU           int    `yaml:"cpu" json:"cpu" validate:"gt=0"` // vCPU
	SSD           int    `yaml:"ssd" json:"ssd" validate:"gt=0"` // GB
	Amount        int64  `yaml:"amount" json:"amount" validate:"gte=0"`
	Currency      string `yaml:"currency" json:"currency" validate:"required,len=3"`
	StripePriceID string `yaml:"stripe_price_id" json:"-"`
	Popular       bool   `yaml:"popular" json:"popular,omitempty"`
}

// Region is a location a server can be placed in.
type Region struct {
	Code      string `yaml:"code" json:"code" validate:"required"`
	Name      string `yaml:"name" json:"name" validate:"required"`
	Available bool   `yaml:"available" json:"available"`
}
