// Package form drives one form through its render, validate and submit
// cycle.
//
// An Engine loads the field descriptors of a form, builds one widget per
// registered field type, binds them to the request or to the values kept in
// the visitor's session, and either renders the form (with inline errors when
// a submission failed validation) or hands a complete SubmissionResult to the
// submission processor and reports where the visitor goes next.
//
// Only a POST whose FORM_SUBMIT value equals the form's marker token counts
// as a submission. Every other request renders the form from session state.
package form
