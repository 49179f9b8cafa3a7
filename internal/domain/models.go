package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormValue holds a numeric form field in its textual form. It accepts a JSON
// string or a JSON number so clients may send either.
type FormValue string

func (v *FormValue) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*v = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FormValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = FormValue(n.String())
	return nil
}

func (v FormValue) String() string {
	return string(v)
}

type UserProfile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Surname    string    `json:"surname"`
	DocumentID string    `json:"document_id"`
	Role       Role      `json:"role"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"created_at"`
}

func (p UserProfile) DisplayName() string {
	return strings.TrimSpace(p.Name + " " + p.Surname)
}

type Credential struct {
	UID          string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type UserCreateRequest struct {
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	DocumentID string `json:"document_id"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
}

type UserUpdateRequest struct {
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	DocumentID string `json:"document_id"`
	Role       string `json:"role"`
}

type InventoryItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  Category        `json:"category"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

type InventoryItemRequest struct {
	Name     string    `json:"name"`
	Category string    `json:"category"`
	Quantity FormValue `json:"quantity"`
	Price    FormValue `json:"price"`
}

type Sale struct {
	ID          string          `json:"id"`
	ItemID      string          `json:"item_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Total       decimal.Decimal `json:"total"`
	CreatedAt   *time.Time      `json:"created_at"`
	SellerID    string          `json:"seller_id"`
	Note        string          `json:"note"`
}

// SaleDraft is the input of the atomic stock-decrement plus sale-insert.
type SaleDraft struct {
	ItemID    string
	Quantity  int
	UnitPrice decimal.Decimal
	SellerID  string
	Note      string
	At        time.Time
}

type SaleRequest struct {
	ItemID    string    `json:"item_id"`
	Quantity  FormValue `json:"quantity"`
	UnitPrice FormValue `json:"unit_price"`
	Note      string    `json:"note"`
}

type SaleResponse struct {
	Sale   Sale        `json:"sale"`
	Ledger DailyLedger `json:"daily_ledger"`
}

type Outflow struct {
	ID         string     `json:"id"`
	Reason     string     `json:"reason"`
	Amount     int64      `json:"amount"`
	CreatedAt  *time.Time `json:"created_at"`
	RecordedBy string     `json:"recorded_by"`
}

type OutflowRequest struct {
	Reason string    `json:"reason"`
	Amount FormValue `json:"amount"`
}

type OutflowResponse struct {
	Outflow Outflow     `json:"outflow"`
	Ledger  DailyLedger `json:"daily_ledger"`
}

type DailyLedger struct {
	Date          string          `json:"date"`
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	Sales         []Sale          `json:"sales"`
	Outflows      []Outflow       `json:"outflows"`
	SalesTotal    decimal.Decimal `json:"sales_total"`
	OutflowsTotal int64           `json:"outflows_total"`
	Balance       decimal.Decimal `json:"balance"`
}

type ChartBucket struct {
	Key      string          `json:"key"`
	Label    string          `json:"label"`
	Sales    decimal.Decimal `json:"sales"`
	Outflows int64           `json:"outflows"`
	Balance  decimal.Decimal `json:"balance"`
}

type Chart struct {
	Period   string            `json:"period"`
	From     time.Time         `json:"from"`
	To       time.Time         `json:"to"`
	Labels   []string          `json:"labels"`
	Balances []decimal.Decimal `json:"balances"`
	Sales    []decimal.Decimal `json:"sales"`
	Outflows []int64           `json:"outflows"`
	Buckets  []ChartBucket     `json:"buckets"`
	NoData   bool              `json:"no_data"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   string      `json:"expires_at"`
	Session     SessionView `json:"session"`
}

type SessionView struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	InitialRole Role         `json:"initial_role"`
	State       string       `json:"state"`
	View        View         `json:"view"`
	Profile     *UserProfile `json:"profile,omitempty"`
}

type Actor struct {
	UserID    string
	SessionID string
	Role      Role
}

type AuditLog struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}
