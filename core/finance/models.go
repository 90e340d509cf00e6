package finance

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/tenant"
)

// Payment statuses
const (
	StatusPaid = "paid"
	StatusDue  = "due"
	StatusVoid = "void"
)

type ChargeType struct {
	core.Model
	Name   string `db:"name" json:"name" validate:"required,max=100"`
	Color  string `db:"color" json:"color"`
	Status string `db:"status" json:"status" validate:"omitempty,oneof=active inactive"`
}

type PaymentType struct {
	core.Model
	Name   string `db:"name" json:"name" validate:"required,max=100"`
	Color  string `db:"color" json:"color"`
	Status string `db:"status" json:"status" validate:"omitempty,oneof=active inactive"`
}

// Charge is a priced item an organization bills its students for.
type Charge struct {
	core.Model
	ChargeTypeID   null.Int `db:"charge_type_id" json:"charge_type"`
	Name           string   `db:"name" json:"name" validate:"required,max=150"`
	Status         string   `db:"status" json:"status" validate:"omitempty,oneof=active inactive"`
	Price          float64  `db:"price" json:"price" validate:"gte=0"`
	OrganizationID int      `db:"organization_id" json:"organization"`
}

type ChargeRead struct {
	Charge
	ChargeType *ChargeType `json:"charge_type"`
}

// ChargeSnapshot is a copy of a charge taken when a payment is recorded.
// Later changes to the charge never reach it.
type ChargeSnapshot struct {
	ID         int                 `json:"id"`
	Name       string              `json:"name"`
	Price      float64             `json:"price"`
	Status     string              `json:"status"`
	ChargeType *ChargeTypeSnapshot `json:"charge_type"`
}

type ChargeTypeSnapshot struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Snapshot copies a charge and its type.
func Snapshot(c Charge, ct *ChargeType) ChargeSnapshot {
	snap := ChargeSnapshot{ID: c.ID, Name: c.Name, Price: c.Price, Status: c.Status}
	if ct != nil {
		snap.ChargeType = &ChargeTypeSnapshot{ID: ct.ID, Name: ct.Name, Color: ct.Color}
	}
	return snap
}

// ChargeSnapshots is the JSONB array of charges a payment covers.
// On the wire a request may list bare charge ids; they are resolved to snapshots when the payment is saved.
type ChargeSnapshots []ChargeSnapshot

func (cs ChargeSnapshots) Value() (driver.Value, error) {
	if cs == nil {
		cs = ChargeSnapshots{}
	}
	return core.JSONValue([]ChargeSnapshot(cs))
}

func (cs *ChargeSnapshots) Scan(value interface{}) error {
	return core.ScanJSON(value, (*[]ChargeSnapshot)(cs))
}

func (cs *ChargeSnapshots) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	res := make(ChargeSnapshots, 0, len(raw))
	for _, item := range raw {
		var snap ChargeSnapshot
		if bytes.HasPrefix(bytes.TrimSpace(item), []byte("{")) {
			if err := json.Unmarshal(item, &snap); err != nil {
				return err
			}
		} else if err := json.Unmarshal(item, &snap.ID); err != nil {
			return fmt.Errorf("invalid charge %s", item)
		}
		res = append(res, snap)
	}
	*cs = res
	return nil
}

// IDs returns the ids of the snapshotted charges.
func (cs ChargeSnapshots) IDs() []int {
	return core.IDs(cs, func(s ChargeSnapshot) int { return s.ID })
}

// OfType keeps the snapshots of one charge type.
func (cs ChargeSnapshots) OfType(chargeTypeID int) ChargeSnapshots {
	res := make(ChargeSnapshots, 0, len(cs))
	for _, s := range cs {
		if s.ChargeType != nil && s.ChargeType.ID == chargeTypeID {
			res = append(res, s)
		}
	}
	return res
}

type Payment struct {
	core.Model
	StudentID      int             `db:"student_id" json:"student" validate:"required"`
	InstitutionID  int             `db:"institution_id" json:"institution"`
	Charges        ChargeSnapshots `db:"charges" json:"charges"`
	Amount         float64         `db:"amount" json:"amount" validate:"gte=0"`
	Date           core.Date       `db:"date" json:"date"`
	Notes          string          `db:"notes" json:"notes"`
	Status         string          `db:"status" json:"status" validate:"omitempty,oneof=paid due void"`
	TermID         null.Int        `db:"term_id" json:"term"`
	OrganizationID int             `db:"organization_id" json:"organization"`
}

type PaymentRead struct {
	Payment
	Student     *people.Student     `json:"student"`
	Institution *tenant.Institution `json:"institution"`
	Term        *school.Term        `json:"term"`
}

type ChargeFilter struct {
	Search     string `query:"search"`
	ChargeType string `query:"charge_type"`
	Status     string `query:"status"`
}

func (f ChargeFilter) Where() sq.Sqlizer {
	return query.All(
		query.Contains("name", f.Search),
		query.ID("charge_type_id", f.ChargeType),
		query.Text("status", f.Status),
	)
}

type PaymentFilter struct {
	Search      string `query:"search"`
	Student     string `query:"student"`
	Institution string `query:"institution"`
	Status      string `query:"status"`
	Term        string `query:"term"`
	Start       string `query:"start"`
	End         string `query:"end"`
}

func (f PaymentFilter) Where() sq.Sqlizer {
	return query.All(
		query.Sub("student_id", "students", query.NameSearch("first_name", "last_name", f.Search)),
		query.ID("student_id", f.Student),
		query.ID("institution_id", f.Institution),
		query.Text("status", f.Status),
		query.ID("term_id", f.Term),
		query.DateRange("date", f.Start, f.End),
	)
}

// PaymentsListFilter selects payments by the type of the charges they cover.
type PaymentsListFilter struct {
	ChargeType string `query:"charge_type"`
	Term       string `query:"term"`
}

func (f PaymentsListFilter) Where() sq.Sqlizer {
	var byType sq.Sqlizer = query.Identity()
	if strings.TrimSpace(f.ChargeType) != "" {
		id, ok := f.ChargeTypeID()
		if !ok {
			return query.None()
		}
		byType = query.JSONContains("charges", []interface{}{
			map[string]interface{}{"charge_type": map[string]int{"id": id}},
		})
	}
	return query.All(byType, query.ID("term_id", f.Term))
}

// ChargeTypeID parses the charge type parameter.
func (f PaymentsListFilter) ChargeTypeID() (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(f.ChargeType))
	return id, err == nil && id > 0
}

// MonthRevenue is the amount paid in during one calendar month.
type MonthRevenue struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
}

type TermRevenue struct {
	Term    string  `json:"term"`
	Revenue float64 `json:"revenue"`
}
