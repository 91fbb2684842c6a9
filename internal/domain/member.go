package domain

// Member is one entry in a room's presence list as shown to clients.
type Member struct {
	ConnID   ConnID `json:"connectionId"`
	Username string `json:"username"`
}
