package models

// Symbol is one tradable instrument in the symbol directory.
type Symbol struct {
	Symbol      string `gorm:"primaryKey;size:32" json:"symbol"`
	CompanyName string `gorm:"not null" json:"company_name"`
	Series      string `json:"series,omitempty"`
	ListedOn    string `json:"listed_on,omitempty"`
}

func (Symbol) TableName() string {
	return "symbols"
}
