package models

import "gorm.io/gorm"

// Carrier is an insurance company the agency writes business with.
type Carrier struct {
	gorm.Model
	Name      string `json:"name" gorm:"unique;not null"`
	NaicCode  string `json:"naicCode" gorm:"column:naic_code"`
	Website   string `json:"website"`
	Phone     string `json:"phone"`
	IsActive  *bool  `json:"isActive" gorm:"default:true"`
	AvatarURL string `json:"avatarUrl"`

	Products []Product `json:"products,omitempty"`
}

// Product is a carrier's insurance product together with its rating and
// commission formulas. Formulas are govaluate expressions.
//
// RateFormula computes a monthly premium from quote inputs
// (age, faceAmount, tobacco as 0/1).
// CompGrid maps a comp level to a commission-percentage expression over
// annualPremium.
type Product struct {
	gorm.Model
	CarrierID uint   `json:"carrierId" gorm:"index;not null"`
	Name      string `json:"name" gorm:"not null"`
	Line      string `json:"line"` // final expense, term, whole life, medicare...

	RateFormula string   `json:"rateFormula"`
	CompGrid    CompGrid `json:"compGrid" gorm:"type:jsonb"`

	Carrier *Carrier `json:"carrier,omitempty" gorm:"foreignKey:CarrierID"`
}
