package types

// Service is one entry of the company's service catalog (photovoltaics, heat
// pumps, storage, wallboxes, ...). The funnel matches visitor input against
// this list.
type Service struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
