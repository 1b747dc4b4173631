// Package model defines the data exchanged by the form pipeline: field
// descriptors and form settings delivered by a schema provider, normalised
// widget values, upload bookkeeping and the aggregate SubmissionResult handed
// to the submission sinks.
//
// Multi-valued fields (checkbox groups, multiple selects) are stored through
// EncodeMultiValue, which writes a JSON array of strings. DecodeMultiValue
// accepts that format and treats anything else as a single selected value.
package model
