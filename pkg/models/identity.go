package models

// Identity is the authenticated user on whose behalf the synchronization
// channel operates. UserID and Credential come from the external login flow;
// the channel only consumes them.
type Identity struct {
	UserID     string `yaml:"user_id" json:"userId"`
	Email      string `yaml:"email" json:"email"`
	Credential string `yaml:"credential,omitempty" json:"-"`
}

// Valid reports whether the identity carries enough to authenticate.
func (i Identity) Valid() bool {
	return i.UserID != "" && i.Email != ""
}
