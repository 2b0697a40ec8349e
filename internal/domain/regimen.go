package domain

// Regimen is a named user-defined group of supplements. It is organizational
// only; the reminder subsystem never consults it.
type Regimen struct {
	ID          int
	Name        string
	Notes       string
	Supplements []Supplement
}
