package norma

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Numbered lists the type tags that carry a number in their display name.
var Numbered = []string{
	"Ley",
	"Decreto",
	"Decreto/Ley",
	"Decisión Administrativa",
	"Resolución",
	"Resolución Conjunta",
	"Resolución General",
	"Resolución Sintetizada",
	"Disposición",
	"Disposición Conjunta",
	"Circular",
	"Comunicación",
	"Protocolo",
	"Acordada",
	"Instrucción General",
	"Nota Externa",
}

// NumberedWithoutYear lists the numbered tags whose display name omits the year.
var NumberedWithoutYear = []string{"Ley", "Decreto/Ley"}

// Policy decides how a norm type is named. It is immutable after construction
// and safe for concurrent use.
type Policy struct {
	numbered map[string]struct{}
	withYear map[string]struct{}
}

// NewPolicy builds a naming policy. Every tag in withYear must also be numbered.
func NewPolicy(numbered, withYear []string) (*Policy, error) {
	p := &Policy{
		numbered: make(map[string]struct{}, len(numbered)),
		withYear: make(map[string]struct{}, len(withYear)),
	}
	for _, t := range numbered {
		p.numbered[foldTag(t)] = struct{}{}
	}
	for _, t := range withYear {
		key := foldTag(t)
		if _, ok := p.numbered[key]; !ok {
			return nil, fmt.Errorf("norma: type %q includes a year but is not numbered", t)
		}
		p.withYear[key] = struct{}{}
	}
	return p, nil
}

var defaultPolicy = func() *Policy {
	withYear := make([]string, 0, len(Numbered))
	for _, t := range Numbered {
		if !contains(NumberedWithoutYear, t) {
			withYear = append(withYear, t)
		}
	}
	p, err := NewPolicy(Numbered, withYear)
	if err != nil {
		panic(err)
	}
	return p
}()

// DefaultPolicy returns the registry naming policy.
func DefaultPolicy() *Policy {
	return defaultPolicy
}

// IsNumbered reports whether the type tag is shown with its number.
func (p *Policy) IsNumbered(tag string) bool {
	_, ok := p.numbered[foldTag(tag)]
	return ok
}

// IncludesYear reports whether the type tag is shown with number and year.
func (p *Policy) IncludesYear(tag string) bool {
	_, ok := p.withYear[foldTag(tag)]
	return ok
}

// DisplayName derives the canonical name of a record:
//
//	"<tipo> <numero>/<year>"  numbered, year-bearing, number and year known
//	"<tipo> <numero>"         numbered, number known
//	"<tipo>"                  otherwise
func (p *Policy) DisplayName(r Record) (string, bool) {
	numbered := p.IsNumbered(r.Type)
	if !numbered {
		return r.Type, false
	}
	numero, ok := r.Numero()
	if !ok {
		return r.Type, true
	}
	if p.IncludesYear(r.Type) {
		if year, ok := r.Year(); ok {
			return r.Type + " " + numero + "/" + strconv.Itoa(year), true
		}
	}
	return r.Type + " " + numero, true
}

// foldTag builds the lookup key for a type tag. Casers are stateful, so one
// is created per call.
func foldTag(tag string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(tag)))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
