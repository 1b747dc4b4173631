package widget

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/idna"

	"github.com/goliatone/go-formflow/pkg/model"
)

var (
	reNumeric  = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	reNatural  = regexp.MustCompile(`^\d+$`)
	reAlpha    = regexp.MustCompile(`^[\pL .-]*$`)
	reAlnum    = regexp.MustCompile(`^[\w\pL .-]*$`)
	reExtended = regexp.MustCompile(`[#&()/<=>]`)
	reEmail    = regexp.MustCompile(`^[\pL\pN.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[\pL\pN](?:[\pL\pN-]*[\pL\pN])?(?:\.[\pL\pN](?:[\pL\pN-]*[\pL\pN])?)+$`)
	reURL      = regexp.MustCompile(`^[\w/.*+?$#%:,;{}()\[\]@&!=~|-]+$`)
	reAlias    = regexp.MustCompile(`^[\pL\pN._~-]+$`)
	rePhone    = regexp.MustCompile(`^(\+|\()?(\d+[ +()/-]*)+$`)
)

// IsNumeric reports whether v is a plain decimal number.
func IsNumeric(v string) bool { return reNumeric.MatchString(v) }

// IsEmail reports whether v is a syntactically valid, IDN-encodable address.
func IsEmail(v string) bool {
	_, err := EncodeEmail(v)
	return err == nil
}

// EncodeEmail validates v and returns it with the domain in punycode.
func EncodeEmail(v string) (string, error) {
	v = strings.TrimSpace(v)
	if !reEmail.MatchString(v) {
		return "", errInvalidFormat
	}
	at := strings.LastIndex(v, "@")
	domain, err := idna.Lookup.ToASCII(v[at+1:])
	if err != nil {
		return "", err
	}
	return v[:at+1] + domain, nil
}

// EncodeURL returns v with its host in punycode.
func EncodeURL(v string) (string, error) {
	v = strings.TrimSpace(v)
	u, err := url.Parse(v)
	if err != nil || u.Host == "" {
		return v, err
	}
	host, err := idna.Lookup.ToASCII(u.Hostname())
	if err != nil {
		return "", err
	}
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	u.Host = host
	return u.String(), nil
}

var errInvalidFormat = errors.New("widget: invalid format")

// checkRgxp validates value against kind, returning the transformed value.
// Failures are added to b.
func (b *base) checkRgxp(value string) string {
	if value == "" {
		return value
	}
	kind := b.field.Rgxp
	tr := b.deps.translate
	switch kind {
	case model.RegexpNone:
	case model.RegexpDigit:
		if !reNumeric.MatchString(value) {
			b.AddError(tr("ERR.digit"))
		}
	case model.RegexpNatural:
		if !reNatural.MatchString(value) {
			b.AddError(tr("ERR.natural"))
		}
	case model.RegexpPrcnt:
		n, err := strconv.ParseFloat(value, 64)
		if !reNumeric.MatchString(value) || err != nil || n < 0 || n > 100 {
			b.AddError(tr("ERR.prcnt"))
		}
	case model.RegexpAlpha:
		if !reAlpha.MatchString(value) {
			b.AddError(tr("ERR.alpha"))
		}
	case model.RegexpAlnum:
		if !reAlnum.MatchString(value) {
			b.AddError(tr("ERR.alnum"))
		}
	case model.RegexpExtnd:
		if reExtended.MatchString(value) {
			b.AddError(tr("ERR.extnd"))
		}
	case model.RegexpDate, model.RegexpTime, model.RegexpDatim:
		layout := b.deps.Formats.Layout(kind)
		if _, err := time.Parse(layout, value); err != nil {
			b.AddError(tr("ERR."+string(kind), humanLayout(layout)))
		}
	case model.RegexpEmail:
		encoded, err := EncodeEmail(value)
		if err != nil {
			b.AddError(tr("ERR.email"))
			return value
		}
		return encoded
	case model.RegexpEmails:
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			encoded, err := EncodeEmail(part)
			if err != nil {
				b.AddError(tr("ERR.emails"))
				return value
			}
			out = append(out, encoded)
		}
		return strings.Join(out, ",")
	case model.RegexpURL:
		encoded, err := EncodeURL(value)
		if err != nil || !reURL.MatchString(encoded) {
			b.AddError(tr("ERR.url"))
			return value
		}
		return encoded
	case model.RegexpAlias:
		if !reAlias.MatchString(value) {
			b.AddError(tr("ERR.alias"))
		}
	case model.RegexpPhone:
		if !rePhone.MatchString(value) {
			b.AddError(tr("ERR.phone"))
		}
	}
	return value
}

// checkBounds applies minlength/maxlength in runes and minval/maxval to
// numeric input.
func (b *base) checkBounds(value string) {
	if value == "" {
		return
	}
	label := b.label()
	length := len([]rune(value))
	if b.field.MinLength > 0 && length < b.field.MinLength {
		b.AddError(b.deps.translate("ERR.minlength", label, b.field.MinLength))
	}
	if b.field.MaxLength > 0 && length > b.field.MaxLength {
		b.AddError(b.deps.translate("ERR.maxlength", label, b.field.MaxLength))
	}
	if !reNumeric.MatchString(value) {
		return
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return
	}
	if b.field.MinValue != nil && n < *b.field.MinValue {
		b.AddError(b.deps.translate("ERR.minval", label, formatFloat(*b.field.MinValue)))
	}
	if b.field.MaxValue != nil && n > *b.field.MaxValue {
		b.AddError(b.deps.translate("ERR.maxval", label, formatFloat(*b.field.MaxValue)))
	}
}

var layoutNames = strings.NewReplacer("2006", "YYYY", "01", "MM", "02", "DD", "15", "hh", "04", "mm", "05", "ss")

func humanLayout(layout string) string {
	return layoutNames.Replace(layout)
}
