package click

import (
	"encoding/json"
	"fmt"
)

const (
	ActionPrepare  = "0"
	ActionComplete = "1"
)

// Error codes of the prepare/complete protocol.
const (
	CodeSuccess           = 0
	CodeSignFailed        = -1
	CodeIncorrectAmount   = -2
	CodeActionNotFound    = -3
	CodeAlreadyPaid       = -4
	CodeOrderNotFound     = -5
	CodeTransactionAbsent = -6
	CodeUpdateFailed      = -7
	CodeBadRequest        = -8
	CodeCancelled         = -9
)

// Field is a callback parameter. It is posted as a form value or as a JSON
// string or number; the signature is computed over its textual form.
type Field string

func (f *Field) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = Field(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("click field: %w", err)
	}
	*f = Field(n)
	return nil
}

func (f Field) String() string {
	return string(f)
}

// Request is the body of both callbacks; Error and MerchantPrepareID are
// only sent with complete.
type Request struct {
	ClickTransID      Field `form:"click_trans_id" json:"click_trans_id"`
	ServiceID         Field `form:"service_id" json:"service_id"`
	ClickPaydocID     Field `form:"click_paydoc_id" json:"click_paydoc_id"`
	MerchantTransID   Field `form:"merchant_trans_id" json:"merchant_trans_id"`
	MerchantPrepareID Field `form:"merchant_prepare_id" json:"merchant_prepare_id"`
	Amount            Field `form:"amount" json:"amount"`
	Action            Field `form:"action" json:"action"`
	Error             Field `form:"error" json:"error"`
	ErrorNote         Field `form:"error_note" json:"error_note"`
	SignTime          Field `form:"sign_time" json:"sign_time"`
	SignString        Field `form:"sign_string" json:"sign_string"`
}

type Response struct {
	ClickTransID      json.Number `json:"click_trans_id,omitempty"`
	MerchantTransID   string      `json:"merchant_trans_id,omitempty"`
	MerchantPrepareID *uint       `json:"merchant_prepare_id,omitempty"`
	MerchantConfirmID *uint       `json:"merchant_confirm_id,omitempty"`
	Error             int         `json:"error"`
	ErrorNote         string      `json:"error_note"`
}
