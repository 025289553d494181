package payme

import (
	"encoding/json"
)

const (
	MethodCheckPerformTransaction = "CheckPerformTransaction"
	MethodCreateTransaction       = "CreateTransaction"
	MethodPerformTransaction      = "PerformTransaction"
	MethodCancelTransaction       = "CancelTransaction"
	MethodCheckTransaction        = "CheckTransaction"
)

const (
	CodeInternal            = -32400
	CodeInsufficientPrivs   = -32504
	CodeMethodNotFound      = -32601
	CodeParseError          = -32700
	CodeInvalidRequest      = -32600
	CodeOrderNotFound       = -31050
	CodeCannotPerform       = -31008
	CodeIncorrectAmount     = -31001
	CodeTransactionNotFound = -31003
)

// Transaction states reported to the gateway.
const (
	StateCreated   = 1
	StateCompleted = 2
	StateCancelled = -1
	StateFailed    = -2
	StateUnknown   = 0
)

type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     json.RawMessage `json:"id"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

type Account struct {
	OrderID string `json:"order_id"`
}

type CheckPerformParams struct {
	Amount  json.Number `json:"amount"`
	Account Account     `json:"account"`
}

type CreateParams struct {
	ID      string      `json:"id"`
	Time    int64       `json:"time"`
	Amount  json.Number `json:"amount"`
	Account Account     `json:"account"`
}

type TransactionParams struct {
	ID string `json:"id"`
}

type CancelParams struct {
	ID     string `json:"id"`
	Reason *int   `json:"reason"`
}

type CheckPerformResult struct {
	Allow bool `json:"allow"`
}

type CreateResult struct {
	CreateTime  int64  `json:"create_time"`
	Transaction string `json:"transaction"`
	State       int    `json:"state"`
}

type PerformResult struct {
	Transaction string `json:"transaction"`
	PerformTime int64  `json:"perform_time"`
	State       int    `json:"state"`
}

type CancelResult struct {
	Transaction string `json:"transaction"`
	CancelTime  int64  `json:"cancel_time"`
	State       int    `json:"state"`
}

type CheckResult struct {
	CreateTime  int64  `json:"create_time"`
	PerformTime int64  `json:"perform_time"`
	CancelTime  int64  `json:"cancel_time"`
	Transaction string `json:"transaction"`
	State       int    `json:"state"`
	Reason      *int   `json:"reason"`
}
