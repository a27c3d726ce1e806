package model

// Service is one purchasable automation service from the catalog.
// The catalog is managed elsewhere; the settlement engine reads it by slug.
type Service struct {
	ID        string
	Slug      string
	Name      string
	PricePYG  int64 // home-currency price, guaraníes have no minor unit
	TrialDays int   // 0 means no trial offer
	Recurring bool  // monthly billing vs one-time purchase
	Active    bool
}

func (s *Service) IsZero() bool { return s == nil || s.ID == "" }
