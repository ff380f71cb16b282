package models

// Service is a bookable salon service from the catalog.
type Service struct {
	ID              string   `json:"id" yaml:"id"`
	Name            string   `json:"name" yaml:"name"`
	Category        string   `json:"category" yaml:"category"`
	Description     string   `json:"description" yaml:"description"`
	Duration        int      `json:"duration" yaml:"duration"` // minutes
	Price           float64  `json:"price" yaml:"price"`
	DiscountedPrice *float64 `json:"discountedPrice,omitempty" yaml:"discounted_price"`
	ImageURL        string   `json:"imageUrl" yaml:"image_url"`
}

// EffectivePrice returns the discounted price when one is set.
func (s Service) EffectivePrice() float64 {
	if s.DiscountedPrice != nil {
		return *s.DiscountedPrice
	}
	return s.Price
}

type StaffMember struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Position string `json:"position" yaml:"position"`
	ImageURL string `json:"imageUrl" yaml:"image_url"`
}

// TimeSlot is a candidate time of day, HH:MM.
type TimeSlot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}
