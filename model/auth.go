package model

// Auth is a flat snapshot of a device session, used to persist and restore
// a logged-in client without logging in again.
type Auth struct {
	Host     string `json:"ip"`
	Username string `json:"username"`
	Password string `json:"password"`
	Session  string `json:"session"`
	Token    string `json:"token"`
}

// Empty reports whether the snapshot carries no session credentials.
func (a Auth) Empty() bool {
	return a.Session == "" && a.Token == ""
}
