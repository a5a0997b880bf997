package domain

// ConnectOutcome is the result of a connect request.
type ConnectOutcome struct {
	Connected bool   `json:"connected"`
	Reason    string `json:"reason,omitempty"`
	Err       error  `json:"-"`
}

// SendOutcome is the result of a single outbound send.
type SendOutcome struct {
	Sent   bool   `json:"sent"`
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

// Connected returns a successful connect outcome.
func Connected() ConnectOutcome {
	return ConnectOutcome{Connected: true}
}

// ConnectFailed converts err into a failed connect outcome.
func ConnectFailed(err error) ConnectOutcome {
	return ConnectOutcome{Reason: string(KindOf(err)), Err: err}
}

// Sent returns a successful send outcome.
func Sent() SendOutcome {
	return SendOutcome{Sent: true}
}

// SendFailed converts err into a failed send outcome.
func SendFailed(err error) SendOutcome {
	return SendOutcome{Reason: string(KindOf(err)), Err: err}
}
