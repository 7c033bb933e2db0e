package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Category distinguishes short courses from longer programs; it selects the
// pricing skeleton and the payment accounts.
type Category string

const (
	CategoryCourse  Category = "COURSE"
	CategoryProgram Category = "PROGRAM"
)

// categoryCourseLabel is the spreadsheet value that marks a course.
const categoryCourseLabel = "CURSO"

// ParseCategory derives a Category from the raw catalog label (case-insensitive).
func ParseCategory(raw string) Category {
	if strings.EqualFold(strings.TrimSpace(raw), categoryCourseLabel) {
		return CategoryCourse
	}
	return CategoryProgram
}

// FlexString decodes a JSON string, number, boolean or null into text.
// Catalog files are spreadsheet exports where price cells may be numbers.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			*f = FlexString(strconv.FormatInt(i, 10))
			return nil
		}
		*f = FlexString(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	*f = FlexString(strconv.FormatBool(b))
	return nil
}

// String returns the decoded text.
func (f FlexString) String() string { return string(f) }

// SegmentPrices holds the four figures quoted to one segment.
type SegmentPrices struct {
	List        string `json:"list"`
	Installment string `json:"installment"`
	Cash        string `json:"cash"`
	Deposit     string `json:"deposit"`
}

// ProgramEntry is one cohort (edition) of a program offering.
type ProgramEntry struct {
	ProgramName     string        `json:"program_name"`
	Edition         string        `json:"edition"`
	CategoryLabel   string        `json:"category_label"`
	Professional    SegmentPrices `json:"professional"`
	Student         SegmentPrices `json:"student"`
	ProfileResponse [5]string     `json:"profile_response"`
	StartDates      [6]string     `json:"start_dates"`
	StartLabel      string        `json:"start_label"`
	EndLabel        string        `json:"end_label"`
	Hours           string        `json:"hours"`
	Days            string        `json:"days"`
	Sessions        string        `json:"sessions"`
	Video           string        `json:"video,omitempty"`
	Image           string        `json:"image,omitempty"`
	Brochure        string        `json:"brochure,omitempty"`
	Personalized    string        `json:"personalized,omitempty"`
	Benefits        string        `json:"benefits,omitempty"`
	PaymentLink     string        `json:"payment_link,omitempty"`
}

// Category returns the entry's category.
func (p ProgramEntry) Category() Category {
	return ParseCategory(p.CategoryLabel)
}

// Prices returns the price set for the given segment.
func (p ProgramEntry) Prices(student bool) SegmentPrices {
	if student {
		return p.Student
	}
	return p.Professional
}

// ProfileResponseFor returns the configured answer for menu option n (1-based).
func (p ProgramEntry) ProfileResponseFor(n int) (string, bool) {
	if n < 1 || n > len(p.ProfileResponse) {
		return "", false
	}
	resp := p.ProfileResponse[n-1]
	return resp, resp != ""
}

// SchedulingDate returns the start date that decides scheduling eligibility
// (the furthest-out sixth start field).
func (p ProgramEntry) SchedulingDate() string {
	return p.StartDates[len(p.StartDates)-1]
}

// Validate checks the fields a catalog row cannot work without.
func (p ProgramEntry) Validate() error {
	if strings.TrimSpace(p.ProgramName) == "" {
		return ErrEmptyProgramName
	}
	return nil
}

// CatalogRow is the on-disk shape of a catalog record (spreadsheet column names).
type CatalogRow struct {
	Program      FlexString `json:"PROGRAMA"`
	Edition      FlexString `json:"EDICION"`
	Category     FlexString `json:"CATEGORIA"`
	ProListT     FlexString `json:"INV PRO T"`
	StuListT     FlexString `json:"INV EST T"`
	ProInst      FlexString `json:"INV PRO"`
	StuInst      FlexString `json:"INV EST"`
	ProCash      FlexString `json:"EXPRO"`
	StuCash      FlexString `json:"EXEST"`
	ProDeposit   FlexString `json:"RESPRO"`
	StuDeposit   FlexString `json:"RESEST"`
	Res1         FlexString `json:"RES1"`
	Res2         FlexString `json:"RES2"`
	Res3         FlexString `json:"RES3"`
	Res4         FlexString `json:"RES4"`
	Res5         FlexString `json:"RES5"`
	Start1       FlexString `json:"INICIO1"`
	Start2       FlexString `json:"INICIO2"`
	Start3       FlexString `json:"INICIO3"`
	Start4       FlexString `json:"INICIO4"`
	Start5       FlexString `json:"INICIO5"`
	Start6       FlexString `json:"INICIO6"`
	Start        FlexString `json:"INICIO"`
	End          FlexString `json:"FIN"`
	Hours        FlexString `json:"HORARIO"`
	Days         FlexString `json:"DIAS"`
	Sessions     FlexString `json:"SESIONES"`
	Video        FlexString `json:"VIDEO"`
	Image        FlexString `json:"POSTDOCEN"`
	Brochure     FlexString `json:"BROCHURE"`
	Personalized FlexString `json:"PERSONALIZADO"`
	Benefits     FlexString `json:"BENEFICIOS"`
	Link         FlexString `json:"ENLACE"`
}

// Entry converts the raw row into a typed ProgramEntry.
func (r CatalogRow) Entry() ProgramEntry {
	return ProgramEntry{
		ProgramName:   r.Program.String(),
		Edition:       r.Edition.String(),
		CategoryLabel: r.Category.String(),
		Professional: SegmentPrices{
			List:        r.ProListT.String(),
			Installment: r.ProInst.String(),
			Cash:        r.ProCash.String(),
			Deposit:     r.ProDeposit.String(),
		},
		Student: SegmentPrices{
			List:        r.StuListT.String(),
			Installment: r.StuInst.String(),
			Cash:        r.StuCash.String(),
			Deposit:     r.StuDeposit.String(),
		},
		ProfileResponse: [5]string{r.Res1.String(), r.Res2.String(), r.Res3.String(), r.Res4.String(), r.Res5.String()},
		StartDates: [6]string{
			r.Start1.String(), r.Start2.String(), r.Start3.String(),
			r.Start4.String(), r.Start5.String(), r.Start6.String(),
		},
		StartLabel:   r.Start.String(),
		EndLabel:     r.End.String(),
		Hours:        r.Hours.String(),
		Days:         r.Days.String(),
		Sessions:     r.Sessions.String(),
		Video:        r.Video.String(),
		Image:        r.Image.String(),
		Brochure:     r.Brochure.String(),
		Personalized: r.Personalized.String(),
		Benefits:     r.Benefits.String(),
		PaymentLink:  r.Link.String(),
	}
}

// SynonymGroup maps a canonical program key to its alternate phrasings.
type SynonymGroup struct {
	Key      string   `json:"key"`
	Variants []string `json:"variants"`
}

// SynonymIndex is the ordered synonym dictionary; order is the file order and
// decides ties between equally long matches.
type SynonymIndex []SynonymGroup

// Content holds the editable texts that are not tied to a catalog row.
type Content struct {
	Greeting               string `yaml:"greeting" json:"greeting"`
	ProfilePrompt          string `yaml:"profile_prompt" json:"profile_prompt"`
	Plus                   string `yaml:"plus" json:"plus"`
	CallToAction           string `yaml:"cta" json:"cta"`
	Headline               string `yaml:"headline" json:"headline"`
	InstallmentDiscountPct int    `yaml:"installment_discount_pct" json:"installment_discount_pct"`
	CashDiscountPct        int    `yaml:"cash_discount_pct" json:"cash_discount_pct"`
}
