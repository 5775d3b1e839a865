package conversation

import (
	"fmt"
	"strings"

	"rembes-go/internal/rembes"
	"rembes-go/internal/report"
)

// StateName names a conversation state.
type StateName string

const (
	StateIdle             StateName = "idle"
	StateAwaitingPhoto    StateName = "awaiting_photo"
	StateAwaitingNote     StateName = "awaiting_note"
	StateAwaitingAmount   StateName = "awaiting_amount"
	StateAwaitingContinue StateName = "awaiting_continue"
	StateChoosingCategory StateName = "choosing_category"
	StateChoosingFile     StateName = "choosing_file"
	StateChoosingField    StateName = "choosing_field"
	StateAwaitingNewValue StateName = "awaiting_new_value"
)

// state is one node of a flow. Each implementation carries only the
// fields that are valid in that state.
type state interface {
	name() StateName
	accepts() []InputKind
	prompt() Reply
}

// op is the flow a category choice belongs to.
type op int

const (
	opDelete op = iota + 1
	opEdit
)

func (o op) verb() string {
	if o == opEdit {
		return "edit"
	}
	return "delete"
}

func (o op) buttonPrefix() string {
	if o == opEdit {
		return "editcat:"
	}
	return "delcat:"
}

type idle struct{}

func (idle) name() StateName { return StateIdle }
func (idle) accepts() []InputKind { return []InputKind{InputCommand} }
func (idle) prompt() Reply { return Reply{Text: msgIdleHint} }

type awaitingPhoto struct {
	category string
}

func (awaitingPhoto) name() StateName      { return StateAwaitingPhoto }
func (awaitingPhoto) accepts() []InputKind { return []InputKind{InputPhoto, InputCommand} }
func (s awaitingPhoto) prompt() Reply {
	return Reply{Text: fmt.Sprintf("Send the receipt photo for %s.", strings.ToUpper(s.category))}
}

type awaitingNote struct {
	category string
	photo    string // empty for no-photo categories
}

func (awaitingNote) name() StateName      { return StateAwaitingNote }
func (awaitingNote) accepts() []InputKind { return []InputKind{InputText, InputCommand} }
func (s awaitingNote) prompt() Reply {
	if s.photo == "" {
		return Reply{Text: fmt.Sprintf("%s: send a short note describing the expense.", strings.ToUpper(s.category))}
	}
	return Reply{Text: "Photo received. Now send a short note describing the expense."}
}

type awaitingAmount struct {
	category string
	photo    string
	note     string
}

func (awaitingAmount) name() StateName      { return StateAwaitingAmount }
func (awaitingAmount) accepts() []InputKind { return []InputKind{InputText, InputCommand} }
func (awaitingAmount) prompt() Reply {
	return Reply{Text: "Enter the amount, digits only (e.g. 45000)."}
}

type awaitingContinue struct {
	category string
}

func (awaitingContinue) name() StateName { return StateAwaitingContinue }
func (awaitingContinue) accepts() []InputKind {
	return []InputKind{InputButton, InputText, InputCommand}
}
func (s awaitingContinue) prompt() Reply {
	return Reply{
		Text: fmt.Sprintf("Add another %s record?", strings.ToUpper(s.category)),
		Buttons: [][]Button{{
			{Label: "Yes", Data: "continue:yes"},
			{Label: "No", Data: "continue:no"},
		}},
	}
}

type choosingCategory struct {
	op    op
	names []string // the choices shown
}

func (choosingCategory) name() StateName      { return StateChoosingCategory }
func (choosingCategory) accepts() []InputKind { return []InputKind{InputButton, InputCommand} }
func (s choosingCategory) prompt() Reply {
	var rows [][]Button
	var row []Button
	for _, n := range s.names {
		row = append(row, Button{Label: strings.ToUpper(n), Data: s.op.buttonPrefix() + n})
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return Reply{
		Text:    fmt.Sprintf("Choose the category of the record to %s:", s.op.verb()),
		Buttons: rows,
	}
}

func (s choosingCategory) choice(data string) (string, bool) {
	cat, ok := strings.CutPrefix(data, s.op.buttonPrefix())
	if !ok {
		return "", false
	}
	for _, n := range s.names {
		if n == cat {
			return cat, true
		}
	}
	return "", false
}

type choosingFile struct {
	op       op
	category string
	period   rembes.Period
	records  []rembes.Record // the listing shown, in order
}

func (choosingFile) name() StateName      { return StateChoosingFile }
func (choosingFile) accepts() []InputKind { return []InputKind{InputText, InputCommand} }
func (s choosingFile) prompt() Reply {
	var b strings.Builder
	fmt.Fprintf(&b, "%s records for period %s:\n\n", strings.ToUpper(s.category), s.period)
	b.WriteString(report.RecordLines(s.records))
	fmt.Fprintf(&b, "\nReply with the number of the record to %s.", s.op.verb())
	return Reply{Text: b.String()}
}

func (s choosingFile) selection(index int) rembes.Selection {
	return rembes.Selection{
		Category: s.category,
		Period:   s.period,
		Index:    index,
		Key:      s.records[index-1].Key,
	}
}

type choosingField struct {
	sel    rembes.Selection
	record rembes.Record
}

func (choosingField) name() StateName { return StateChoosingField }
func (choosingField) accepts() []InputKind {
	return []InputKind{InputButton, InputText, InputCommand}
}
func (s choosingField) prompt() Reply {
	return Reply{
		Text: fmt.Sprintf("Editing %s - %s. Which field?", s.record.DisplayNote(), report.FormatAmount(s.record.Amount)),
		Buttons: [][]Button{{
			{Label: "Note", Data: "field:note"},
			{Label: "Amount", Data: "field:amount"},
		}},
	}
}

type awaitingNewValue struct {
	sel    rembes.Selection
	record rembes.Record
	field  rembes.Field
}

func (awaitingNewValue) name() StateName      { return StateAwaitingNewValue }
func (awaitingNewValue) accepts() []InputKind { return []InputKind{InputText, InputCommand} }
func (s awaitingNewValue) prompt() Reply {
	if s.field == rembes.FieldAmount {
		return Reply{Text: fmt.Sprintf("Current amount: %s. Send the new amount, digits only.", report.FormatAmount(s.record.Amount))}
	}
	return Reply{Text: fmt.Sprintf("Current note: %s. Send the new note.", s.record.DisplayNote())}
}
