package models

// Account is the visible balance state of one client. Total is derived from
// Available and Held and never stored.
type Account struct {
	Client    ClientID `json:"client"`
	Available Amount   `json:"available"`
	Held      Amount   `json:"held"`
	Locked    bool     `json:"locked"`
}

// NewAccount returns the zero-initialised, unlocked account for a client.
func NewAccount(client ClientID) Account {
	return Account{Client: client}
}

// Total returns Available + Held.
func (a Account) Total() Amount {
	return a.Available.Add(a.Held)
}
