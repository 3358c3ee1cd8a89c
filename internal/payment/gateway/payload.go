package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/bootcamp/pkg/money"
)

const signedDateFormat = "2006-01-02T15:04:05Z"

var ErrMissingCredentials = errors.New("missing_gateway_credentials")

type Merchant struct {
	AccessKey   string
	ProfileID   string
	SecurityKey string
}

func (m Merchant) Validate() error {
	if m.AccessKey == "" || m.ProfileID == "" || m.SecurityKey == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Checkout is what goes into one hosted-checkout form.
type Checkout struct {
	Reference   string
	Amount      money.Amount
	RunKey      int64
	OrderID     string
	ItemName    string
	RedirectURL string
	// MerchantData fills merchant_defined_data1..8 in order.
	MerchantData    [8]string
	TransactionUUID string
	SignedAt        time.Time
}

// BuildPayload returns the signed form fields for checkout.
func BuildPayload(m Merchant, c Checkout) (map[string]string, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	txUUID := c.TransactionUUID
	if txUUID == "" {
		txUUID = NewTransactionUUID()
	}
	amount := c.Amount.String()
	runKey := strconv.FormatInt(c.RunKey, 10)

	fields := map[string]string{
		"access_key":                   m.AccessKey,
		"profile_id":                   m.ProfileID,
		"reference_number":             c.Reference,
		"amount":                       amount,
		"currency":                     "USD",
		"locale":                       "en-us",
		"transaction_type":             "sale",
		"transaction_uuid":             txUUID,
		"signed_date_time":             c.SignedAt.UTC().Format(signedDateFormat),
		"line_item_count":              "1",
		"item_0_code":                  "bootcamp_run",
		"item_0_name":                  c.ItemName,
		"item_0_sku":                   runKey,
		"item_0_quantity":              "1",
		"item_0_unit_price":            amount,
		"item_0_tax_amount":            "0.00",
		"override_custom_cancel_page":  c.RedirectURL + "?status=cancel",
		"override_custom_receipt_page": c.RedirectURL + "?" + receiptQuery(c.OrderID, runKey),
		FieldUnsignedNames:             "",
	}
	for i, v := range c.MerchantData {
		fields[fmt.Sprintf("merchant_defined_data%d", i+1)] = v
	}
	fields[FieldSignedNames] = SignedFieldNames(fields)

	sig, err := Sign(fields, m.SecurityKey)
	if err != nil {
		return nil, err
	}
	fields[FieldSignature] = sig
	return fields, nil
}

// receiptQuery keeps status, order, award in that order.
func receiptQuery(orderID, runKey string) string {
	return "status=receipt&order=" + url.QueryEscape(orderID) + "&award=" + url.QueryEscape(runKey)
}

// NewTransactionUUID returns a random UUID as 32 hex characters.
func NewTransactionUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
