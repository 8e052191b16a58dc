package pipeline

import (
	"clinic-auth/entity"
	"clinic-auth/service"
)

// Slot names a value carried between steps
type Slot string

const (
	SlotPhone       Slot = "phone"
	SlotUser        Slot = "user"
	SlotOTPCode     Slot = "otp_code"
	SlotCredentials Slot = "credentials"
	SlotToken       Slot = "token"
)

// State is the flow state of one pipeline invocation. It is not safe for
// concurrent use and is discarded once the invocation finishes.
type State struct {
	values map[Slot]interface{}
}

// NewState returns an empty flow state
func NewState() *State {
	return &State{values: make(map[Slot]interface{})}
}

// NewPhoneState seeds a state with a phone number
func NewPhoneState(phone string) *State {
	s := NewState()
	s.Set(SlotPhone, phone)
	return s
}

// NewCredentialsState seeds a state with login credentials
func NewCredentialsState(credentials *entity.LoginRequest) *State {
	s := NewState()
	s.Set(SlotCredentials, credentials)
	return s
}

// Set stores value under slot, replacing any previous value
func (s *State) Set(slot Slot, value interface{}) {
	s.values[slot] = value
}

// Get returns the raw value stored under slot
func (s *State) Get(slot Slot) (interface{}, bool) {
	v, ok := s.values[slot]
	return v, ok
}

// Has reports whether slot holds a value
func (s *State) Has(slot Slot) bool {
	_, ok := s.values[slot]
	return ok
}

func (s *State) Phone() string {
	v, _ := s.values[SlotPhone].(string)
	return v
}

func (s *State) User() *entity.Account {
	v, _ := s.values[SlotUser].(*entity.Account)
	return v
}

func (s *State) SetUser(account *entity.Account) {
	s.values[SlotUser] = account
}

func (s *State) OTPCode() string {
	v, _ := s.values[SlotOTPCode].(string)
	return v
}

func (s *State) SetOTPCode(code string) {
	s.values[SlotOTPCode] = code
}

func (s *State) Credentials() *entity.LoginRequest {
	v, _ := s.values[SlotCredentials].(*entity.LoginRequest)
	return v
}

func (s *State) Token() *service.IssuedToken {
	v, _ := s.values[SlotToken].(*service.IssuedToken)
	return v
}

func (s *State) SetToken(token *service.IssuedToken) {
	s.values[SlotToken] = token
}
