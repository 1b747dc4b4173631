package widget

import (
	"context"
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/render"
)

// ConfirmSuffix is appended to a password field name for its confirmation
// input.
const ConfirmSuffix = "_confirm"

// BcryptHasher hashes passwords with bcrypt.
type BcryptHasher struct {
	Cost int
}

// Hash implements PasswordHasher.
func (h BcryptHasher) Hash(plain string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Password only ever binds freshly posted data and replaces the value with
// a hash before it leaves the widget.
type Password struct {
	base
	confirm      string
	confirmClass string
}

func newPassword(field model.FieldDescriptor, deps *Deps) Widget {
	return &Password{base: newBase(field, deps)}
}

// Bind implements Widget. Session and default values are ignored.
func (w *Password) Bind(in Input) {
	w.raw = nil
	w.confirm = ""
	w.bound = false
	if !in.Fresh {
		return
	}
	w.raw, w.bound = in.Lookup(w.field.Name)
	if values, ok := in.Lookup(w.field.Name + ConfirmSuffix); ok && len(values) > 0 {
		w.confirm = values[0]
	}
}

// Validate implements Widget.
func (w *Password) Validate(_ context.Context) {
	w.errors = nil
	w.submits = false
	w.value = model.SingleValue("")

	plain := w.first()
	if plain == "" {
		if w.required() {
			w.mandatoryError()
			return
		}
		w.submits = true
		return
	}

	minLength := w.field.MinLength
	if minLength <= 0 {
		minLength = w.deps.minPasswordLength()
	}
	if utf8.RuneCountInString(plain) < minLength {
		w.AddError(w.deps.translate("ERR.passwordLength", minLength))
	}
	if w.field.MaxLength > 0 && utf8.RuneCountInString(plain) > w.field.MaxLength {
		w.AddError(w.deps.translate("ERR.maxlength", w.label(), w.field.MaxLength))
	}
	if plain != w.confirm {
		w.AddError(w.deps.translate("ERR.passwordMatch"))
	}
	if w.HasErrors() {
		return
	}

	hashed, err := w.hash(plain)
	if err != nil {
		w.AddError(w.deps.translate("ERR.passwordHash"))
		return
	}
	w.value = model.SingleValue(hashed)
	w.submits = true
}

func (w *Password) hash(plain string) (string, error) {
	if w.deps.Hasher == nil {
		return "", errors.New("widget: password hasher is not configured")
	}
	return w.deps.Hasher.Hash(plain)
}

// Rows implements Widget. The confirmation input takes its own row.
func (w *Password) Rows() int { return 2 }

// SetConfirmRowClass sets the row class of the confirmation input.
func (w *Password) SetConfirmRowClass(class string) { w.confirmClass = class }

// ConsumedKeys implements Widget.
func (w *Password) ConsumedKeys() []string {
	return []string{w.field.Name, w.field.Name + ConfirmSuffix}
}

// TemplateData implements Widget. The value is never echoed.
func (w *Password) TemplateData() render.WidgetView {
	view := w.view()
	view.Value = ""
	view.Confirm = &render.ConfirmView{
		Name:  w.field.Name + ConfirmSuffix,
		ID:    view.ID + ConfirmSuffix,
		Label: w.deps.translate("MSC.confirmPassword"),
		Class: w.confirmClass,
	}
	return view
}
