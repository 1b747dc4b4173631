package render

// OptionView is one choice of a radio, checkbox or select widget.
type OptionView struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Group    string `json:"group,omitempty"`
	Selected bool   `json:"selected"`
	ID       string `json:"id"`
}

// WidgetView is the flat data a widget template receives.
type WidgetView struct {
	Template    string            `json:"-"`
	Type        string            `json:"type"`
	Name        string            `json:"name"`
	ID          string            `json:"id"`
	Label       string            `json:"label"`
	Mandatory   bool              `json:"mandatory"`
	Value       string            `json:"value"`
	Options     []OptionView      `json:"options,omitempty"`
	Multiple    bool              `json:"multiple"`
	Errors      []string          `json:"errors,omitempty"`
	Class       string            `json:"class"`
	Placeholder string            `json:"placeholder,omitempty"`
	Text        string            `json:"text,omitempty"`
	MinLength   int               `json:"minlength,omitempty"`
	MaxLength   int               `json:"maxlength,omitempty"`
	Min         string            `json:"min,omitempty"`
	Max         string            `json:"max,omitempty"`
	Step        string            `json:"step,omitempty"`
	Accept      string            `json:"accept,omitempty"`
	Confirm     *ConfirmView      `json:"confirm,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// ConfirmView describes the confirmation input rendered below a password.
type ConfirmView struct {
	Name  string `json:"name"`
	ID    string `json:"id"`
	Label string `json:"label"`
	Class string `json:"class"`
}

// MessageView is one replayed session message.
type MessageView struct {
	Class string `json:"class"`
	Text  string `json:"text"`
}

// FormView is the data passed to the form wrapper template.
type FormView struct {
	ID         string            `json:"id"`
	Key        string            `json:"key"`
	Title      string            `json:"title"`
	Method     string            `json:"method"`
	Action     string            `json:"action"`
	Enctype    string            `json:"enctype"`
	NoValidate bool              `json:"novalidate"`
	CSSID      string            `json:"cssId,omitempty"`
	Class      string            `json:"class"`
	HasError   bool              `json:"hasError"`
	Locale     string            `json:"locale"`
	Hidden     []HiddenField     `json:"hidden"`
	Messages   []MessageView     `json:"messages,omitempty"`
	Theme      map[string]string `json:"theme,omitempty"`
}
