package authapi

import (
	"net/url"
	"time"
)

// formDecoder is implemented by requests that also accept form encoding.
type formDecoder interface {
	fromForm(v url.Values)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *credentialsRequest) fromForm(v url.Values) {
	r.Username = v.Get("username")
	r.Password = v.Get("password")
}

type destroyRequest struct {
	Token string `json:"token"`
}

func (r *destroyRequest) fromForm(v url.Values) {
	r.Token = v.Get("token")
}

type updateRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r *updateRequest) fromForm(v url.Values) {
	r.Token = v.Get("token")
	r.Password = v.Get("password")
}

// userView never includes the password hash.
type userView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Envelope fields: err is true only for internal failures, warning for
// business rejections. Nullable fields are null outside their success path.

type getResponse struct {
	Err     bool      `json:"err"`
	Warning bool      `json:"warning"`
	Msg     string    `json:"msg"`
	Exists  *bool     `json:"exists"`
	Token   *string   `json:"token"`
	User    *userView `json:"user"`
}

type createResponse struct {
	Err      bool    `json:"err"`
	Warning  bool    `json:"warning"`
	Msg      string  `json:"msg"`
	Exists   *bool   `json:"exists"`
	Username *string `json:"username,omitempty"`
	ID       *string `json:"id,omitempty"`
}

type deviceResponse struct {
	Err     bool      `json:"err"`
	Warning bool      `json:"warning"`
	Msg     string    `json:"msg"`
	Exists  *bool     `json:"exists"`
	User    *userView `json:"user"`
}
